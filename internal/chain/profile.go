package chain

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const defaultBlockTime = 12 * time.Second

// Profile describes one chain the service reads from.
type Profile struct {
	ChainID     uint64
	Name        string
	RPCURL      string
	Contract    common.Address
	BlockTime   time.Duration
	Fingerprint string // sha256 of the source file, logged at startup
}

type rawProfile struct {
	ChainID   uint64 `yaml:"chain_id"`
	Name      string `yaml:"name"`
	RPCURL    string `yaml:"rpc_url"`
	Contract  string `yaml:"contract_address"`
	BlockTime string `yaml:"block_time"`
}

// FileSystemProfileRepository loads chain profiles from *.yaml files in
// a directory. Each file contains exactly one profile at the top level.
// Profiles are loaded once at startup and cached in memory, no hot
// reload.
type FileSystemProfileRepository struct {
	dir      string
	profiles map[uint64]Profile // keyed by ChainID
}

// NewFileSystemProfileRepository creates a new repository and eagerly
// loads all profiles from dir. Returns an error if any profile file is
// malformed or invalid.
func NewFileSystemProfileRepository(dir string) (*FileSystemProfileRepository, error) {
	repo := &FileSystemProfileRepository{
		dir:      dir,
		profiles: make(map[uint64]Profile),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemProfileRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no profile directory, valid (zero chains configured)
	}
	if err != nil {
		return fmt.Errorf("chain profile dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("chain profile path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading chain profile dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading profile file %s: %w", path, err)
		}

		var raw rawProfile
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing profile file %s: %w", path, err)
		}
		if raw.ChainID == 0 && raw.Name == "" {
			continue // skip empty / comment-only files
		}

		profile, err := raw.validated()
		if err != nil {
			return fmt.Errorf("profile file %s: %w", path, err)
		}

		if _, exists := r.profiles[profile.ChainID]; exists {
			return fmt.Errorf("chain %d: duplicate profile (check multiple YAML files)", profile.ChainID)
		}

		profile.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))
		r.profiles[profile.ChainID] = profile
	}

	return nil
}

func (raw rawProfile) validated() (Profile, error) {
	if raw.ChainID == 0 {
		return Profile{}, fmt.Errorf("chain_id must not be zero")
	}
	if strings.TrimSpace(raw.Name) == "" {
		return Profile{}, fmt.Errorf("chain %d: name must not be empty", raw.ChainID)
	}
	if strings.TrimSpace(raw.RPCURL) == "" {
		return Profile{}, fmt.Errorf("chain %d: rpc_url must not be empty", raw.ChainID)
	}
	if !common.IsHexAddress(raw.Contract) {
		return Profile{}, fmt.Errorf("chain %d: contract_address %q is not a valid address", raw.ChainID, raw.Contract)
	}

	blockTime := defaultBlockTime
	if raw.BlockTime != "" {
		parsed, err := time.ParseDuration(raw.BlockTime)
		if err != nil {
			return Profile{}, fmt.Errorf("chain %d: invalid block_time %q: %w", raw.ChainID, raw.BlockTime, err)
		}
		if parsed <= 0 {
			return Profile{}, fmt.Errorf("chain %d: block_time must be > 0", raw.ChainID)
		}
		blockTime = parsed
	}

	return Profile{
		ChainID:   raw.ChainID,
		Name:      raw.Name,
		RPCURL:    raw.RPCURL,
		Contract:  common.HexToAddress(raw.Contract),
		BlockTime: blockTime,
	}, nil
}

// Get looks up one profile by chain id.
func (r *FileSystemProfileRepository) Get(chainID uint64) (*Profile, error) {
	profile, ok := r.profiles[chainID]
	if !ok {
		return nil, fmt.Errorf("chain profile %d not found", chainID)
	}
	return &profile, nil
}

// List returns all loaded profiles ordered by chain id.
func (r *FileSystemProfileRepository) List() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
