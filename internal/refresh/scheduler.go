// Package refresh keeps the event cache warm so interactive reads
// rarely pay a cold fetch. The warmer only refreshes the all-events
// collection per chain; owner and organizer views stay demand-driven
// because their key space is unbounded.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/gatewise-lab/project-gatewise/internal/fetcher"
	"github.com/gatewise-lab/project-gatewise/internal/readmodel"
)

// Scheduler refetches the event catalog on a periodic interval.
// It is stateless: each tick independently refreshes every registered chain.
type Scheduler struct {
	interval time.Duration
	store    *readmodel.Store
	chains   []uint64
}

// NewScheduler creates a cache warmer for the given chains.
func NewScheduler(interval time.Duration, store *readmodel.Store, chains []uint64) *Scheduler {
	return &Scheduler{
		interval: interval,
		store:    store,
		chains:   chains,
	}
}

// Start begins periodic refreshing. Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Refresh] Starting cache warmer",
		"interval", s.interval,
		"chains", s.chains,
	)

	// Warm the cache immediately so the first request after boot is served hot
	s.refreshAll(ctx)

	for {
		select {
		case <-ticker.C:
			s.refreshAll(ctx)
		case <-ctx.Done():
			slog.Info("[Refresh] Stopping (context cancelled)")
			return nil
		}
	}
}

// refreshAll refetches the default event listing of every chain, under
// the same query the API applies when a caller passes no filters, so
// the warmed cache key is the one interactive reads actually hit.
// A failing chain is logged and skipped; the others still refresh.
func (s *Scheduler) refreshAll(ctx context.Context) {
	for _, chainID := range s.chains {
		select {
		case <-ctx.Done():
			slog.Info("[Refresh] Refresh interrupted by context cancellation", "chain_id", chainID)
			return
		default:
		}

		start := time.Now()
		snap := s.store.RefetchAllEvents(ctx, chainID, fetcher.Query{Limit: fetcher.DefaultListLimit})
		if snap.State == readmodel.StateError {
			slog.Warn("[Refresh] Chain refresh failed",
				"chain_id", chainID,
				"error", snap.Err,
				"stale_served", snap.FromCache,
			)
			continue
		}

		slog.Info("[Refresh] Chain refreshed",
			"chain_id", chainID,
			"events", len(snap.Collection),
			"duration", time.Since(start),
		)
	}
}
