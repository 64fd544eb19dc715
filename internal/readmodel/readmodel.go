// Package readmodel orchestrates fetcher, cache and retry into the
// collections the presentation layer consumes. Each cache key runs an
// explicit Idle → Loading → {Ready | Error} state machine, independent
// of any UI-binding mechanism.
package readmodel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gatewise-lab/project-gatewise/internal/cache"
	"github.com/gatewise-lab/project-gatewise/internal/core/retry"
)

// State names one phase of a key's lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Snapshot is the tagged state a subscriber sees. In StateError the
// Collection still carries the last-good (possibly expired) data so the
// consumer can render stale results next to an error banner instead of
// a blank state.
type Snapshot[T any] struct {
	State       State
	Collection  []T
	Err         error
	UserMessage string
	FromCache   bool
	UpdatedAt   time.Time
}

// Subscriber receives state transitions for one key.
type Subscriber[T any] func(key string, snap Snapshot[T])

// keyState tracks the live state machine for one cache key.
type keyState[T any] struct {
	snap Snapshot[T]
	seq  uint64 // latest issued request for this key
}

// Collection is a keyed read model over one record type. Concurrent
// loads of the same key are deduplicated through singleflight, and a
// monotonic sequence number drops commits from superseded requests.
type Collection[T any] struct {
	name        string
	cache       *cache.Cache[[]T]
	ttl         time.Duration
	maxAttempts int
	nowFn       func() time.Time

	group singleflight.Group

	mu          sync.Mutex
	states      map[string]*keyState[T]
	subscribers []Subscriber[T]
}

// NewCollection creates a read model named for logging, with its own
// cache and TTL policy.
func NewCollection[T any](name string, c *cache.Cache[[]T], ttl time.Duration, maxAttempts int) *Collection[T] {
	if maxAttempts <= 0 {
		maxAttempts = retry.DefaultMaxAttempts
	}
	return &Collection[T]{
		name:        name,
		cache:       c,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		nowFn:       time.Now,
		states:      make(map[string]*keyState[T]),
	}
}

// Subscribe registers a callback for every state transition.
func (c *Collection[T]) Subscribe(fn Subscriber[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Snapshot returns the current state for key without triggering a load.
func (c *Collection[T]) Snapshot(key string) Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.states[key]; ok {
		return st.snap
	}
	return Snapshot[T]{State: StateIdle}
}

// Load serves key from cache when a valid entry exists, otherwise runs
// fetch through the retry policy and commits the result. Concurrent
// callers for the same key share one in-flight fetch.
func (c *Collection[T]) Load(ctx context.Context, key string, fetch func(context.Context) ([]T, error)) Snapshot[T] {
	if values, ok := c.cache.Get(key); ok {
		return c.commit(key, 0, Snapshot[T]{
			State:      StateReady,
			Collection: values,
			FromCache:  true,
			UpdatedAt:  c.nowFn(),
		})
	}
	return c.load(ctx, key, fetch)
}

// Refetch forces cache invalidation for key and repeats the loading path.
func (c *Collection[T]) Refetch(ctx context.Context, key string, fetch func(context.Context) ([]T, error)) Snapshot[T] {
	c.cache.Invalidate(key)
	c.group.Forget(key)
	return c.load(ctx, key, fetch)
}

// Invalidate drops the cached entry for key. The next Load goes to chain.
func (c *Collection[T]) Invalidate(key string) {
	c.cache.Invalidate(key)
}

// InvalidatePrefix drops every cached entry under a key prefix.
func (c *Collection[T]) InvalidatePrefix(prefix string) {
	c.cache.InvalidatePrefix(prefix)
}

// commitSetupError surfaces a non-retryable configuration failure
// (unsupported chain, contract not deployed) without entering Loading:
// there is nothing to retry and no fetch to sequence.
func (c *Collection[T]) commitSetupError(key string, err error) Snapshot[T] {
	classified := retry.Classify(err)
	snap := Snapshot[T]{
		State:       StateError,
		Err:         classified.Cause,
		UserMessage: classified.UserMessage,
		UpdatedAt:   c.nowFn(),
	}
	if stale, ok := c.cache.GetStale(key); ok {
		snap.Collection = stale
		snap.FromCache = true
	}
	return c.commit(key, 0, snap)
}

// CacheStats exposes the underlying cache counters for diagnostics.
func (c *Collection[T]) CacheStats() cache.Stats {
	return c.cache.Stats()
}

func (c *Collection[T]) load(ctx context.Context, key string, fetch func(context.Context) ([]T, error)) Snapshot[T] {
	seq := c.beginLoading(key)

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		return retry.Do(ctx, c.maxAttempts, fetch)
	})

	if err != nil {
		classified := retry.Classify(err)
		snap := Snapshot[T]{
			State:       StateError,
			Err:         classified.Cause,
			UserMessage: classified.UserMessage,
			UpdatedAt:   c.nowFn(),
		}
		// Fall back to cached data on error, expired entries included.
		if stale, ok := c.cache.GetStale(key); ok {
			snap.Collection = stale
			snap.FromCache = true
		}
		slog.Warn("[ReadModel] Fetch failed after retries",
			"model", c.name,
			"key", key,
			"category", classified.Category,
			"stale_fallback", snap.FromCache,
			"error", err,
		)
		return c.commit(key, seq, snap)
	}

	values := result.([]T)
	c.cache.Set(key, values, c.ttl)
	return c.commit(key, seq, Snapshot[T]{
		State:      StateReady,
		Collection: values,
		UpdatedAt:  c.nowFn(),
	})
}

// beginLoading transitions key to Loading and issues a new sequence
// number for this request.
func (c *Collection[T]) beginLoading(key string) uint64 {
	c.mu.Lock()
	st := c.stateFor(key)
	st.seq++
	seq := st.seq
	prev := st.snap
	st.snap = Snapshot[T]{
		State:      StateLoading,
		Collection: prev.Collection,
		FromCache:  prev.FromCache,
		UpdatedAt:  c.nowFn(),
	}
	snap := st.snap
	subs := c.subscribers
	c.mu.Unlock()

	c.notify(subs, key, snap)
	return seq
}

// commit installs snap as the state for key unless a newer request has
// been issued since seq: whoever asked last wins, a stale in-flight
// result never overwrites a fresher one. seq 0 bypasses the guard
// (cache-hit short-circuit).
func (c *Collection[T]) commit(key string, seq uint64, snap Snapshot[T]) Snapshot[T] {
	c.mu.Lock()
	st := c.stateFor(key)
	if seq != 0 && seq < st.seq {
		current, latest := st.snap, st.seq
		c.mu.Unlock()
		slog.Debug("[ReadModel] Dropping superseded fetch result",
			"model", c.name,
			"key", key,
			"seq", seq,
			"latest", latest,
		)
		return current
	}
	st.snap = snap
	subs := c.subscribers
	c.mu.Unlock()

	c.notify(subs, key, snap)
	return snap
}

func (c *Collection[T]) stateFor(key string) *keyState[T] {
	st, ok := c.states[key]
	if !ok {
		st = &keyState[T]{snap: Snapshot[T]{State: StateIdle}}
		c.states[key] = st
	}
	return st
}

func (c *Collection[T]) notify(subs []Subscriber[T], key string, snap Snapshot[T]) {
	for _, fn := range subs {
		fn(key, snap)
	}
}
