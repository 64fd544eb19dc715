// Package registry maps chain ids to their fetchers. It replaces hidden
// global factory state with an explicit object owned by the application
// root, so tests can inject fake clients per chain.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gatewise-lab/project-gatewise/internal/chain"
	"github.com/gatewise-lab/project-gatewise/internal/fetcher"
)

// Registry holds one fetcher per supported chain.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[uint64]*fetcher.Fetcher
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		fetchers: make(map[uint64]*fetcher.Fetcher),
	}
}

// Register binds a chain client with its fetch tuning. Registering the
// same chain id twice is a wiring bug.
func (r *Registry) Register(client chain.Client, cfg fetcher.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := client.ChainID()
	if _, exists := r.fetchers[id]; exists {
		return fmt.Errorf("chain %d already registered", id)
	}
	r.fetchers[id] = fetcher.New(client, cfg)
	return nil
}

// ForChain returns the fetcher for a chain id, or chain.ErrChainUnsupported.
func (r *Registry) ForChain(chainID uint64) (*fetcher.Fetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fetchers[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d: %w", chainID, chain.ErrChainUnsupported)
	}
	return f, nil
}

// ChainIDs lists the registered chains in ascending order.
func (r *Registry) ChainIDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint64, 0, len(r.fetchers))
	for id := range r.fetchers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
