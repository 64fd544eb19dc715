package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time instead of sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedCache[T any](clock *fakeClock, opts ...Option[T]) *Cache[T] {
	c := New[T](opts...)
	c.nowFn = clock.Now
	return c
}

func TestCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newClockedCache[string](clock)

	c.Set("k", "v", 100*time.Millisecond)

	clock.Advance(50 * time.Millisecond)
	v, ok := c.Get("k")
	require.True(t, ok, "entry must be present before its TTL elapses")
	require.Equal(t, "v", v)

	clock.Advance(100 * time.Millisecond)
	_, ok = c.Get("k")
	require.False(t, ok, "entry must read as absent after its TTL elapses")
}

func TestCacheGetStaleSurvivesExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newClockedCache[int](clock)

	c.Set("k", 7, time.Minute)
	clock.Advance(time.Hour)

	_, ok := c.Get("k")
	require.False(t, ok)

	stale, ok := c.GetStale("k")
	require.True(t, ok, "expired entries stay reachable through GetStale")
	require.Equal(t, 7, stale)

	c.Invalidate("k")
	_, ok = c.GetStale("k")
	require.False(t, ok, "invalidation removes the stale copy too")
}

func TestCacheOverwriteResetsTTL(t *testing.T) {
	clock := newFakeClock()
	c := newClockedCache[string](clock)

	c.Set("k", "old", time.Minute)
	clock.Advance(50 * time.Second)
	c.Set("k", "new", time.Minute)
	clock.Advance(30 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "new", v)
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c := New[int]()
	c.Set("events:1:org:a", 1, time.Minute)
	c.Set("events:1:org:b", 2, time.Minute)
	c.Set("events:2:org:a", 3, time.Minute)
	c.Set("tickets:1:owner:a", 4, time.Minute)

	c.InvalidatePrefix("events:1:")

	_, ok := c.Get("events:1:org:a")
	require.False(t, ok)
	_, ok = c.Get("events:1:org:b")
	require.False(t, ok)

	_, ok = c.Get("events:2:org:a")
	require.True(t, ok)
	_, ok = c.Get("tickets:1:owner:a")
	require.True(t, ok)
}

func TestCacheInvalidateAllKeepsStats(t *testing.T) {
	c := New[int]()
	c.Set("a", 1, time.Minute)
	c.Get("a")
	c.Get("missing")

	c.InvalidateAll()

	stats := c.Stats()
	require.Equal(t, 0, stats.Size)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestCacheStats(t *testing.T) {
	c := New[string](WithSizer[string](func(v string) int { return len(v) }))

	c.Set("a", "four", time.Minute)
	c.Set("b", "sixsix", time.Minute)

	c.Get("a")       // hit
	c.Get("a")       // hit
	c.Get("missing") // miss

	stats := c.Stats()
	require.Equal(t, int64(2), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, 2, stats.Size)
	require.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	require.Equal(t, 10, stats.MemoryUsage)
}

func TestCacheExpiredGetCountsAsMiss(t *testing.T) {
	clock := newFakeClock()
	c := newClockedCache[int](clock)

	c.Set("k", 1, time.Second)
	clock.Advance(2 * time.Second)
	c.Get("k")

	stats := c.Stats()
	require.Equal(t, int64(0), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Set(key, n, time.Minute)
				c.Get(key)
				if j%50 == 0 {
					c.InvalidatePrefix("k1")
				}
			}
		}(i)
	}
	wg.Wait()

	stats := c.Stats()
	require.GreaterOrEqual(t, stats.Hits+stats.Misses, int64(1600))
}
