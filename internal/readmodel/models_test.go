package readmodel

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/gatewise-lab/project-gatewise/internal/chain"
	"github.com/gatewise-lab/project-gatewise/internal/core/record"
	"github.com/gatewise-lab/project-gatewise/internal/fetcher"
	"github.com/gatewise-lab/project-gatewise/internal/registry"
)

var testOrganizer = common.HexToAddress("0xaaaa000000000000000000000000000000000001")

// stubClient answers the contract view methods with a fixed event set
// and an empty log history.
type stubClient struct {
	mu      sync.Mutex
	chainID uint64
	events  map[uint64][]interface{}
	counts  map[string]int
}

func newStubClient(chainID uint64) *stubClient {
	return &stubClient{
		chainID: chainID,
		events:  make(map[uint64][]interface{}),
		counts:  make(map[string]int),
	}
}

func (s *stubClient) ChainID() uint64 { return s.chainID }

func (s *stubClient) BlockNumber(ctx context.Context) (uint64, error) { return 1000, nil }

func (s *stubClient) FilterLogs(ctx context.Context, q chain.LogQuery) ([]types.Log, error) {
	return nil, nil
}

func (s *stubClient) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	s.mu.Lock()
	s.counts[method]++
	s.mu.Unlock()

	switch method {
	case "nextEventId":
		max := uint64(0)
		for id := range s.events {
			if id > max {
				max = id
			}
		}
		return []interface{}{new(big.Int).SetUint64(max + 1)}, nil
	case "getEventDetails":
		id := args[0].(*big.Int).Uint64()
		tuple, ok := s.events[id]
		if !ok {
			return nil, fmt.Errorf("call: %w", chain.ErrExecutionReverted)
		}
		return tuple, nil
	case "getTotalRevenue", "getWithdrawableAmount":
		return []interface{}{big.NewInt(0)}, nil
	case "balanceOf":
		return []interface{}{big.NewInt(0)}, nil
	}
	return nil, fmt.Errorf("unexpected method %s", method)
}

func (s *stubClient) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method]
}

func (s *stubClient) addEvent(id uint64, name string) {
	s.events[id] = []interface{}{
		name,
		"description",
		big.NewInt(1788901200),
		"Main Hall",
		big.NewInt(1000),
		big.NewInt(50),
		big.NewInt(10),
		testOrganizer,
		uint8(0),
		big.NewInt(1786000000),
	}
}

// recordingArchiver signals through a channel so tests can wait for the
// background archive goroutine.
type recordingArchiver struct {
	mu      sync.Mutex
	events  [][]record.EventRecord
	tickets [][]record.TicketRecord
	done    chan struct{}
}

func newRecordingArchiver() *recordingArchiver {
	return &recordingArchiver{done: make(chan struct{}, 8)}
}

func (a *recordingArchiver) ArchiveEvents(ctx context.Context, chainID uint64, events []record.EventRecord) error {
	a.mu.Lock()
	a.events = append(a.events, events)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *recordingArchiver) ArchiveTickets(ctx context.Context, chainID uint64, tickets []record.TicketRecord) error {
	a.mu.Lock()
	a.tickets = append(a.tickets, tickets)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *recordingArchiver) waitForArchive(t *testing.T) {
	t.Helper()
	select {
	case <-a.done:
	case <-time.After(2 * time.Second):
		t.Fatal("archiver was not invoked")
	}
}

func (a *recordingArchiver) eventBatches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func newTestStore(t *testing.T, client *stubClient, opts ...StoreOption) *Store {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(client, fetcher.Config{
		EventChunkSize:     5,
		TicketBatchSize:    5,
		LogChunkBlocks:     500,
		InitialScanWindow:  100 * time.Second,
		ExpandedScanWindow: 1000 * time.Second,
		BlockTime:          time.Second,
		CallTimeout:        5 * time.Second,
	}))
	return NewStore(reg, time.Minute, time.Minute, 1, opts...)
}

func TestStoreAllEvents(t *testing.T) {
	client := newStubClient(84532)
	client.addEvent(1, "First")
	client.addEvent(2, "Second")
	store := newTestStore(t, client)

	snap := store.AllEvents(context.Background(), 84532, fetcher.Query{})
	require.Equal(t, StateReady, snap.State)
	require.Len(t, snap.Collection, 2)
	require.False(t, snap.FromCache)

	snap = store.AllEvents(context.Background(), 84532, fetcher.Query{})
	require.True(t, snap.FromCache, "repeat query within TTL is a cache hit")
	require.Equal(t, 1, client.callCount("nextEventId"))
}

func TestStoreUnsupportedChain(t *testing.T) {
	store := newTestStore(t, newStubClient(84532))

	snap := store.AllEvents(context.Background(), 1, fetcher.Query{})
	require.Equal(t, StateError, snap.State)
	require.ErrorIs(t, snap.Err, chain.ErrChainUnsupported)
	require.NotEmpty(t, snap.UserMessage)
}

func TestStoreEventNotFound(t *testing.T) {
	client := newStubClient(84532)
	store := newTestStore(t, client)

	snap := store.Event(context.Background(), 84532, 404)
	require.Equal(t, StateReady, snap.State)
	require.Empty(t, snap.Collection, "an absent event is an empty ready collection, not an error")
}

func TestStoreEventAttachesStats(t *testing.T) {
	client := newStubClient(84532)
	client.addEvent(3, "Gala")
	store := newTestStore(t, client)

	snap := store.Event(context.Background(), 84532, 3)
	require.Equal(t, StateReady, snap.State)
	require.Len(t, snap.Collection, 1)
	require.Equal(t, "Gala", snap.Collection[0].Name)
	require.Equal(t, uint64(10), snap.Collection[0].Stats.TicketsSold)
	require.Equal(t, uint64(50), snap.Collection[0].Stats.TotalTickets)
}

func TestStoreUserTicketsEmptyWallet(t *testing.T) {
	client := newStubClient(84532)
	store := newTestStore(t, client)

	snap := store.UserTickets(context.Background(), 84532, testOrganizer)
	require.Equal(t, StateReady, snap.State)
	require.Empty(t, snap.Collection)
}

func TestStoreArchivesFreshEvents(t *testing.T) {
	client := newStubClient(84532)
	client.addEvent(1, "First")
	archiver := newRecordingArchiver()
	store := newTestStore(t, client, WithArchiver(archiver))

	store.AllEvents(context.Background(), 84532, fetcher.Query{})
	archiver.waitForArchive(t)
	require.Equal(t, 1, archiver.eventBatches())

	// A cache hit must not archive again.
	store.AllEvents(context.Background(), 84532, fetcher.Query{})
	require.Equal(t, 1, archiver.eventBatches())
}

func TestStoreInvalidateAllEventsCoversDetailKeys(t *testing.T) {
	client := newStubClient(84532)
	client.addEvent(1, "First")
	store := newTestStore(t, client)

	store.AllEvents(context.Background(), 84532, fetcher.Query{})
	store.Event(context.Background(), 84532, 1)
	countBefore := client.callCount("getEventDetails")

	store.InvalidateAllEvents(84532)

	store.AllEvents(context.Background(), 84532, fetcher.Query{})
	store.Event(context.Background(), 84532, 1)
	require.Greater(t, client.callCount("getEventDetails"), countBefore,
		"both the listing and the detail entry must reload after invalidation")
}

func TestStoreInvalidationIsScopedPerChain(t *testing.T) {
	client := newStubClient(84532)
	client.addEvent(1, "First")
	store := newTestStore(t, client)

	store.AllEvents(context.Background(), 84532, fetcher.Query{})
	store.InvalidateAllEvents(31337)

	snap := store.AllEvents(context.Background(), 84532, fetcher.Query{})
	require.True(t, snap.FromCache, "another chain's invalidation must not evict this chain")
}

func TestCacheKeysDistinguishFilters(t *testing.T) {
	base := AllEventsKey(84532, fetcher.Query{})
	withStatus := AllEventsKey(84532, fetcher.Query{Statuses: []record.Status{record.StatusActive}})
	withPage := AllEventsKey(84532, fetcher.Query{Limit: 10, Offset: 20})
	withOrg := AllEventsKey(84532, fetcher.Query{Organizer: &testOrganizer})

	require.NotEqual(t, base, withStatus)
	require.NotEqual(t, base, withPage)
	require.NotEqual(t, base, withOrg)
	require.NotEqual(t, withStatus, withPage)
}

func TestCacheKeysNormalizeAddressCase(t *testing.T) {
	upper := common.HexToAddress("0xAAAA000000000000000000000000000000000001")
	require.Equal(t, OrganizerEventsKey(1, testOrganizer), OrganizerEventsKey(1, upper))
	require.Equal(t, UserTicketsKey(1, testOrganizer), UserTicketsKey(1, upper))
}

func TestCacheKeysOrderStatusesDeterministically(t *testing.T) {
	a := AllEventsKey(1, fetcher.Query{Statuses: []record.Status{record.StatusActive, record.StatusPaused}})
	b := AllEventsKey(1, fetcher.Query{Statuses: []record.Status{record.StatusPaused, record.StatusActive}})
	require.Equal(t, a, b)
}
