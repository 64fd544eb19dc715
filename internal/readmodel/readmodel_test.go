package readmodel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatewise-lab/project-gatewise/internal/cache"
	"github.com/gatewise-lab/project-gatewise/internal/chain"
	"github.com/gatewise-lab/project-gatewise/internal/core/record"
)

func newIntCollection(ttl time.Duration) *Collection[int] {
	return NewCollection("test", cache.New[[]int](), ttl, 1)
}

func fetchOnce(values []int, counter *atomic.Int64) func(context.Context) ([]int, error) {
	return func(context.Context) ([]int, error) {
		counter.Add(1)
		return values, nil
	}
}

func TestCollectionLoadCachesResult(t *testing.T) {
	c := newIntCollection(time.Minute)
	var calls atomic.Int64

	snap := c.Load(context.Background(), "k", fetchOnce([]int{1, 2, 3}, &calls))
	require.Equal(t, StateReady, snap.State)
	require.Equal(t, []int{1, 2, 3}, snap.Collection)
	require.False(t, snap.FromCache)

	snap = c.Load(context.Background(), "k", fetchOnce([]int{9}, &calls))
	require.Equal(t, StateReady, snap.State)
	require.Equal(t, []int{1, 2, 3}, snap.Collection, "second load is served from cache")
	require.True(t, snap.FromCache)
	require.Equal(t, int64(1), calls.Load())
}

func TestCollectionSnapshotStartsIdle(t *testing.T) {
	c := newIntCollection(time.Minute)
	require.Equal(t, StateIdle, c.Snapshot("missing").State)
}

func TestCollectionLoadErrorWithoutCache(t *testing.T) {
	c := newIntCollection(time.Minute)

	snap := c.Load(context.Background(), "k", func(context.Context) ([]int, error) {
		return nil, errors.New("execution reverted: EventDoesNotExist")
	})
	require.Equal(t, StateError, snap.State)
	require.Error(t, snap.Err)
	require.NotEmpty(t, snap.UserMessage)
	require.Empty(t, snap.Collection)
	require.False(t, snap.FromCache)
}

func TestCollectionErrorFallsBackToStaleData(t *testing.T) {
	c := newIntCollection(time.Nanosecond)
	var calls atomic.Int64

	snap := c.Load(context.Background(), "k", fetchOnce([]int{7, 8}, &calls))
	require.Equal(t, StateReady, snap.State)

	// The entry has expired, so the reload runs and fails. The expired
	// data still rides along with the error.
	time.Sleep(time.Millisecond)
	snap = c.Load(context.Background(), "k", func(context.Context) ([]int, error) {
		return nil, errors.New("dial tcp 10.0.0.1:8545: connection refused")
	})
	require.Equal(t, StateError, snap.State)
	require.Error(t, snap.Err)
	require.Equal(t, []int{7, 8}, snap.Collection)
	require.True(t, snap.FromCache)
}

func TestCollectionRefetchBypassesCache(t *testing.T) {
	c := newIntCollection(time.Minute)
	var calls atomic.Int64

	c.Load(context.Background(), "k", fetchOnce([]int{1}, &calls))
	snap := c.Refetch(context.Background(), "k", fetchOnce([]int{2}, &calls))

	require.Equal(t, StateReady, snap.State)
	require.Equal(t, []int{2}, snap.Collection)
	require.False(t, snap.FromCache)
	require.Equal(t, int64(2), calls.Load())
}

func TestCollectionSubscriberSeesTransitions(t *testing.T) {
	c := newIntCollection(time.Minute)

	var mu sync.Mutex
	var states []State
	c.Subscribe(func(key string, snap Snapshot[int]) {
		mu.Lock()
		states = append(states, snap.State)
		mu.Unlock()
	})

	c.Load(context.Background(), "k", func(context.Context) ([]int, error) {
		return []int{1}, nil
	})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []State{StateLoading, StateReady}, states)
}

func TestCollectionConcurrentLoadsShareOneFetch(t *testing.T) {
	c := newIntCollection(time.Minute)
	var calls atomic.Int64

	fetch := func(context.Context) ([]int, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []int{42}, nil
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			snap := c.Load(context.Background(), "k", fetch)
			require.Equal(t, StateReady, snap.State)
			require.Equal(t, []int{42}, snap.Collection)
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(1), calls.Load(), "concurrent loads of one key share a single fetch")
}

func TestCollectionSupersededCommitIsDropped(t *testing.T) {
	c := newIntCollection(time.Minute)

	seqOld := c.beginLoading("k")
	seqNew := c.beginLoading("k")

	fresh := Snapshot[int]{State: StateReady, Collection: []int{2}}
	got := c.commit("k", seqNew, fresh)
	require.Equal(t, []int{2}, got.Collection)

	// The older request finishing late must not overwrite the newer result.
	stale := Snapshot[int]{State: StateReady, Collection: []int{1}}
	got = c.commit("k", seqOld, stale)
	require.Equal(t, []int{2}, got.Collection)
	require.Equal(t, []int{2}, c.Snapshot("k").Collection)
}

func TestCollectionSetupErrorClassifiesCause(t *testing.T) {
	c := newIntCollection(time.Minute)

	snap := c.commitSetupError("k", chain.ErrChainUnsupported)
	require.Equal(t, StateError, snap.State)
	require.ErrorIs(t, snap.Err, chain.ErrChainUnsupported)
	require.NotEmpty(t, snap.UserMessage)
}

func TestCollectionValidationErrorSkipsRetry(t *testing.T) {
	c := NewCollection("test", cache.New[[]int](), time.Minute, 3)
	var calls atomic.Int64

	snap := c.Load(context.Background(), "k", func(context.Context) ([]int, error) {
		calls.Add(1)
		return nil, record.ErrMalformedRecord
	})
	require.Equal(t, StateError, snap.State)
	require.Equal(t, int64(1), calls.Load(), "malformed data is not retried")
}
