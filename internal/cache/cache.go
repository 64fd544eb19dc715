// Package cache provides a generic TTL key-value store with hit/miss
// statistics. It is the only shared mutable state in the read layer and
// is safe for concurrent use.
package cache

import (
	"strings"
	"sync"
	"time"
)

// entry holds one cached value with its expiry bookkeeping.
type entry[T any] struct {
	value    T
	storedAt time.Time
	ttl      time.Duration
	size     int
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Size        int     `json:"size"`
	HitRate     float64 `json:"hit_rate"`
	MemoryUsage int     `json:"memory_usage_bytes"`
}

// Cache is a TTL store. Expired entries are treated as absent by Get and
// retained only for the explicit stale-fallback path (GetStale); they are
// evicted when overwritten or invalidated.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	hits    int64
	misses  int64
	nowFn   func() time.Time
	sizeFn  func(T) int
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithSizer supplies an approximate per-value byte size used for the
// MemoryUsage statistic.
func WithSizer[T any](fn func(T) int) Option[T] {
	return func(c *Cache[T]) { c.sizeFn = fn }
}

// New creates an empty cache.
func New[T any](opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		entries: make(map[string]entry[T]),
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key iff the entry exists and has not expired.
// It never returns stale data silently: an expired entry reads as absent
// and counts as a miss.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	var zero T
	if !exists {
		c.miss()
		return zero, false
	}
	if c.expired(e) {
		c.miss()
		return zero, false
	}
	c.hit()
	return e.value, true
}

// GetStale returns the value for key regardless of expiry. Used by read
// models to surface last-good data alongside an error after retries are
// exhausted. Does not touch hit/miss statistics.
func (c *Cache[T]) GetStale(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the given ttl. Last writer wins.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	size := 0
	if c.sizeFn != nil {
		size = c.sizeFn(value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{
		value:    value,
		storedAt: c.nowFn(),
		ttl:      ttl,
		size:     size,
	}
}

// Invalidate removes one entry.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix removes every entry whose key starts with prefix.
// Used when one write logically affects a family of filtered listings.
func (c *Cache[T]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// InvalidateAll removes every entry. Statistics are kept.
func (c *Cache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[T])
}

// Stats reports hit/miss counters and current occupancy.
func (c *Cache[T]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	memory := 0
	for _, e := range c.entries {
		memory += e.size
	}

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Size:        len(c.entries),
		HitRate:     rate,
		MemoryUsage: memory,
	}
}

func (c *Cache[T]) expired(e entry[T]) bool {
	return c.nowFn().Sub(e.storedAt) > e.ttl
}

func (c *Cache[T]) hit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache[T]) miss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}
