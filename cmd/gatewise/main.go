package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gatewise-lab/project-gatewise/internal/chain/ethrpc"
	corecfg "github.com/gatewise-lab/project-gatewise/internal/core/config"
	"github.com/gatewise-lab/project-gatewise/internal/core/storage/postgres"
	"github.com/gatewise-lab/project-gatewise/internal/fetcher"
	"github.com/gatewise-lab/project-gatewise/internal/migrations"
	"github.com/gatewise-lab/project-gatewise/internal/query"
	"github.com/gatewise-lab/project-gatewise/internal/readmodel"
	"github.com/gatewise-lab/project-gatewise/internal/refresh"
	"github.com/gatewise-lab/project-gatewise/internal/registry"
	"github.com/gatewise-lab/project-gatewise/internal/server"
	"github.com/gatewise-lab/project-gatewise/internal/writeback"
)

func main() {
	configPath := flag.String("config", "gatewise.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "chains", len(cfg.Profiles), "archive_enabled", cfg.Database.Enabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize the optional snapshot archive (PostgreSQL)
	var (
		archiver  *postgres.Adapter
		archiveDB *sql.DB
	)
	if cfg.Database.Enabled {
		archiver, err = postgres.NewAdapter(
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
		)
		if err != nil {
			slog.Error("Failed to initialize snapshot archive", "error", err)
			os.Exit(1)
		}
		defer archiver.Close()
		archiveDB = archiver.DB()

		if err := migrations.RunMigrations(archiveDB, cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("Snapshot archive disabled, running cache-only")
	}

	// 3. Connect chain clients and build the fetcher registry
	reg := registry.New()
	for _, profile := range cfg.Profiles {
		client, err := ethrpc.Dial(ctx, profile.ChainID, profile.RPCURL, profile.Contract)
		if err != nil {
			slog.Error("Failed to connect chain",
				"chain_id", profile.ChainID,
				"name", profile.Name,
				"error", err)
			os.Exit(1)
		}
		defer client.Close()

		err = reg.Register(client, fetcher.Config{
			EventChunkSize:     cfg.Fetch.EventChunkSize,
			TicketBatchSize:    cfg.Fetch.TicketBatchSize,
			LogChunkBlocks:     cfg.Fetch.LogChunkBlocks,
			InitialScanWindow:  cfg.Fetch.InitialScanWindowDuration(),
			ExpandedScanWindow: cfg.Fetch.ExpandedScanWindowDuration(),
			BlockTime:          profile.BlockTime,
			CallTimeout:        cfg.Fetch.CallTimeoutDuration(),
		})
		if err != nil {
			slog.Error("Failed to register chain", "chain_id", profile.ChainID, "error", err)
			os.Exit(1)
		}

		slog.Info("Chain registered",
			"chain_id", profile.ChainID,
			"name", profile.Name,
			"contract", profile.Contract.Hex(),
			"profile_fingerprint", profile.Fingerprint)
	}

	// 4. Initialize the read models
	storeOpts := []readmodel.StoreOption{}
	if archiver != nil {
		storeOpts = append(storeOpts, readmodel.WithArchiver(archiver))
	}
	store := readmodel.NewStore(
		reg,
		cfg.Cache.EventsTTLDuration(),
		cfg.Cache.TicketsTTLDuration(),
		cfg.Retry.MaxAttempts,
		storeOpts...,
	)

	// 5. Initialize the write-path coordinator and query API
	coordinator := writeback.NewCoordinator(store)
	querySvc := query.NewService(store, coordinator)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), archiveDB, cfg.Server.Mode, reg.ChainIDs())
	querySvc.RegisterRoutes(srv.Engine)

	// 7. Start the background cache warmer if enabled
	if cfg.Refresh.Enabled {
		warmer := refresh.NewScheduler(cfg.Refresh.IntervalDuration(), store, reg.ChainIDs())
		go func() {
			if err := warmer.Start(ctx); err != nil {
				slog.Error("Cache warmer stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Cache warmer disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
