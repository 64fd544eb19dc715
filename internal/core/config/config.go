package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gatewise-lab/project-gatewise/internal/chain"
)

// Config represents the top-level application config plus resolved chain profiles.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Chains   ChainsConfig   `koanf:"chains"`
	Fetch    FetchConfig    `koanf:"fetch"`
	Cache    CacheConfig    `koanf:"cache"`
	Retry    RetryConfig    `koanf:"retry"`
	Refresh  RefreshConfig  `koanf:"refresh"`

	// Profiles is populated by Load after parsing chain profile files.
	Profiles []chain.Profile `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

// DatabaseConfig configures the optional snapshot archive. When
// Enabled is false the service runs cache-only and never touches
// Postgres.
type DatabaseConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type ChainsConfig struct {
	ConfigDir       string `koanf:"config_dir"`
	RequireProfiles bool   `koanf:"require_profiles"`
}

type FetchConfig struct {
	EventChunkSize     int    `koanf:"event_chunk_size"`
	TicketBatchSize    int    `koanf:"ticket_batch_size"`
	LogChunkBlocks     uint64 `koanf:"log_chunk_blocks"`
	InitialScanWindow  string `koanf:"initial_scan_window"`  // parsed and validated on startup
	ExpandedScanWindow string `koanf:"expanded_scan_window"` // parsed and validated on startup
	CallTimeout        string `koanf:"call_timeout"`
}

type CacheConfig struct {
	EventsTTL  string `koanf:"events_ttl"`
	TicketsTTL string `koanf:"tickets_ttl"`
}

type RetryConfig struct {
	MaxAttempts int `koanf:"max_attempts"`
}

// RefreshConfig drives the background cache warmer.
type RefreshConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Interval string `koanf:"interval"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if c.Database.Enabled {
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required when database.enabled is true")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
		if c.Database.Type != "" && c.Database.Type != "postgres" {
			return fmt.Errorf("unsupported database.type %q", c.Database.Type)
		}
	}

	if strings.TrimSpace(c.Chains.ConfigDir) == "" {
		return fmt.Errorf("chains.config_dir is required")
	}

	if c.Fetch.EventChunkSize <= 0 {
		return fmt.Errorf("fetch.event_chunk_size must be > 0")
	}
	if c.Fetch.TicketBatchSize <= 0 {
		return fmt.Errorf("fetch.ticket_batch_size must be > 0")
	}
	if c.Fetch.LogChunkBlocks == 0 {
		return fmt.Errorf("fetch.log_chunk_blocks must be > 0")
	}

	initial, err := parsePositiveDuration("fetch.initial_scan_window", c.Fetch.InitialScanWindow)
	if err != nil {
		return err
	}
	expanded, err := parsePositiveDuration("fetch.expanded_scan_window", c.Fetch.ExpandedScanWindow)
	if err != nil {
		return err
	}
	if expanded < initial {
		return fmt.Errorf("fetch.expanded_scan_window must be >= fetch.initial_scan_window")
	}
	if _, err := parsePositiveDuration("fetch.call_timeout", c.Fetch.CallTimeout); err != nil {
		return err
	}

	if _, err := parsePositiveDuration("cache.events_ttl", c.Cache.EventsTTL); err != nil {
		return err
	}
	if _, err := parsePositiveDuration("cache.tickets_ttl", c.Cache.TicketsTTL); err != nil {
		return err
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}

	if c.Refresh.Enabled {
		if _, err := parsePositiveDuration("refresh.interval", c.Refresh.Interval); err != nil {
			return err
		}
	}

	return nil
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

// Duration accessors. Validate has already proven these parse, so the
// zero value only surfaces for a Config that skipped validation.

func (c FetchConfig) InitialScanWindowDuration() time.Duration {
	return mustDuration(c.InitialScanWindow)
}

func (c FetchConfig) ExpandedScanWindowDuration() time.Duration {
	return mustDuration(c.ExpandedScanWindow)
}

func (c FetchConfig) CallTimeoutDuration() time.Duration {
	return mustDuration(c.CallTimeout)
}

func (c CacheConfig) EventsTTLDuration() time.Duration {
	return mustDuration(c.EventsTTL)
}

func (c CacheConfig) TicketsTTLDuration() time.Duration {
	return mustDuration(c.TicketsTTL)
}

func (c RefreshConfig) IntervalDuration() time.Duration {
	return mustDuration(c.Interval)
}

func mustDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

// Load parses config from file + env, validates it, then loads and validates chain profiles.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                8080,
		"server.host":                "0.0.0.0",
		"server.max_body_size_mb":    1,
		"server.mode":                "release",
		"database.enabled":           false,
		"database.type":              "postgres",
		"database.dsn":               "",
		"database.max_open_conns":    25,
		"database.max_idle_conns":    25,
		"database.auto_migrate":      true,
		"chains.config_dir":          "./config/chains",
		"chains.require_profiles":    true,
		"fetch.event_chunk_size":     10,
		"fetch.ticket_batch_size":    15,
		"fetch.log_chunk_blocks":     8000,
		"fetch.initial_scan_window":  "168h",
		"fetch.expanded_scan_window": "2160h",
		"fetch.call_timeout":         "15s",
		"cache.events_ttl":           "10m",
		"cache.tickets_ttl":          "5m",
		"retry.max_attempts":         3,
		"refresh.enabled":            false,
		"refresh.interval":           "5m",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("GATEWISE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "GATEWISE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := chain.NewFileSystemProfileRepository(cfg.Chains.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain profiles: %w", err)
	}
	profiles := repo.List()
	if cfg.Chains.RequireProfiles && len(profiles) == 0 {
		return nil, fmt.Errorf("no chain profiles found in %q", cfg.Chains.ConfigDir)
	}
	cfg.Profiles = profiles

	return &cfg, nil
}
