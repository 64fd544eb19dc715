// Package fetcher translates logical read queries into batched, bounded-
// parallel contract calls and log scans against one chain.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gatewise-lab/project-gatewise/internal/chain"
	"github.com/gatewise-lab/project-gatewise/internal/core/record"
)

const (
	defaultEventChunkSize     = 10
	defaultTicketBatchSize    = 15
	defaultLogChunkBlocks     = 8000
	defaultInitialScanWindow  = 7 * 24 * time.Hour
	defaultExpandedScanWindow = 90 * 24 * time.Hour
	defaultBlockTime          = 12 * time.Second
	defaultCallTimeout        = 15 * time.Second
)

// Config tunes batch sizes and scan windows for one chain.
type Config struct {
	// EventChunkSize is the number of per-id detail reads in flight at once.
	EventChunkSize int
	// TicketBatchSize is the number of concurrent ticket metadata resolutions.
	TicketBatchSize int
	// LogChunkBlocks is the block span of one getLogs request.
	LogChunkBlocks uint64
	// InitialScanWindow is how far back the first purchase-log scan looks.
	InitialScanWindow time.Duration
	// ExpandedScanWindow is the fallback depth when the initial scan is empty.
	ExpandedScanWindow time.Duration
	// BlockTime converts scan windows into block counts.
	BlockTime time.Duration
	// CallTimeout bounds every individual RPC round trip.
	CallTimeout time.Duration
}

func (c Config) normalized() Config {
	n := c
	if n.EventChunkSize <= 0 {
		n.EventChunkSize = defaultEventChunkSize
	}
	if n.TicketBatchSize <= 0 {
		n.TicketBatchSize = defaultTicketBatchSize
	}
	if n.LogChunkBlocks == 0 {
		n.LogChunkBlocks = defaultLogChunkBlocks
	}
	if n.InitialScanWindow <= 0 {
		n.InitialScanWindow = defaultInitialScanWindow
	}
	if n.ExpandedScanWindow <= 0 {
		n.ExpandedScanWindow = defaultExpandedScanWindow
	}
	if n.BlockTime <= 0 {
		n.BlockTime = defaultBlockTime
	}
	if n.CallTimeout <= 0 {
		n.CallTimeout = defaultCallTimeout
	}
	return n
}

// Query filters and windows a FetchAllEvents call.
// DefaultListLimit is the page size applied when a listing caller does
// not request one. The API layer and the cache warmer both normalize
// to it so they share one cache key.
const DefaultListLimit = 50

type Query struct {
	Organizer *common.Address
	Statuses  []record.Status
	Limit     int
	Offset    int
}

// Fetcher executes read queries against one chain's ticketing contract.
type Fetcher struct {
	client chain.Client
	cfg    Config
}

// New creates a fetcher for the given chain client.
func New(client chain.Client, cfg Config) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg.normalized(),
	}
}

// ChainID returns the chain this fetcher reads.
func (f *Fetcher) ChainID() uint64 {
	return f.client.ChainID()
}

// call executes one contract read with the per-call timeout applied.
func (f *Fetcher) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
	defer cancel()
	return f.client.Call(callCtx, method, args...)
}

// EventCount reads the next-event-id counter; the total number of events
// ever created is counter − 1.
func (f *Fetcher) EventCount(ctx context.Context) (uint64, error) {
	tuple, err := f.call(ctx, "nextEventId")
	if err != nil {
		return 0, fmt.Errorf("read event counter: %w", err)
	}
	if len(tuple) != 1 {
		return 0, fmt.Errorf("%w: nextEventId returned %d values", record.ErrMalformedRecord, len(tuple))
	}
	next, ok := tuple[0].(*big.Int)
	if !ok || !next.IsUint64() {
		return 0, fmt.Errorf("%w: nextEventId is not a uint64", record.ErrMalformedRecord)
	}
	counter := next.Uint64()
	if counter == 0 {
		return 0, nil
	}
	return counter - 1, nil
}

// FetchEventDetails reads one event. A non-existent event is reported as
// ok=false, not as an error: asking for an id past the end of the range
// is an expected outcome of range scans.
func (f *Fetcher) FetchEventDetails(ctx context.Context, eventID uint64) (record.EventRecord, bool, error) {
	tuple, err := f.call(ctx, "getEventDetails", new(big.Int).SetUint64(eventID))
	if err != nil {
		if isAbsent(err) {
			return record.EventRecord{}, false, nil
		}
		return record.EventRecord{}, false, fmt.Errorf("event %d details: %w", eventID, err)
	}

	// The contract returns a zeroed struct for unknown ids; a zero
	// createdAt is the tell. An empty tuple falls through to the
	// transform, which rejects it as malformed.
	if len(tuple) > 0 {
		if created, ok := tuple[len(tuple)-1].(*big.Int); ok && created.Sign() == 0 {
			return record.EventRecord{}, false, nil
		}
	}

	rec, err := record.EventRecordFromTuple(eventID, tuple)
	if err != nil {
		return record.EventRecord{}, false, err
	}
	return rec, true, nil
}

// FetchEventStats combines the two revenue reads, executed concurrently.
// Stats are supplementary: any failure degrades to zeroed stats rather
// than failing the event.
func (f *Fetcher) FetchEventStats(ctx context.Context, ev *record.EventRecord) record.EventStats {
	var total, available *big.Int

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := f.readWei(gCtx, "getTotalRevenue", ev.EventID)
		if err != nil {
			return err
		}
		total = v
		return nil
	})
	g.Go(func() error {
		v, err := f.readWei(gCtx, "getWithdrawableAmount", ev.EventID)
		if err != nil {
			return err
		}
		available = v
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Warn("[Fetcher] Stats read failed, substituting zeroed stats",
			"chain_id", f.ChainID(),
			"event_id", ev.EventID,
			"error", err,
		)
		return record.ZeroStats(ev.CurrentSupply, ev.MaxSupply)
	}
	return record.NewEventStats(total, available, ev.CurrentSupply, ev.MaxSupply)
}

func (f *Fetcher) readWei(ctx context.Context, method string, eventID uint64) (*big.Int, error) {
	tuple, err := f.call(ctx, method, new(big.Int).SetUint64(eventID))
	if err != nil {
		return nil, err
	}
	if len(tuple) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", record.ErrMalformedRecord, method, len(tuple))
	}
	v, ok := tuple[0].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s is not a uint256", record.ErrMalformedRecord, method)
	}
	return v, nil
}

// FetchEventsBatch fetches the inclusive id range in fixed-size chunks.
// Each chunk's reads run concurrently; a failed read drops that id and
// the scan continues. A range spanning thousands of ids must not fail
// wholesale because one id errors.
func (f *Fetcher) FetchEventsBatch(ctx context.Context, startID, endID uint64) ([]record.EventRecord, error) {
	if startID < 1 {
		startID = 1
	}
	if endID < startID {
		return nil, nil
	}

	fetchID := uuid.NewString()
	results := make([]record.EventRecord, 0, endID-startID+1)

	for chunkStart := startID; chunkStart <= endID; chunkStart += uint64(f.cfg.EventChunkSize) {
		chunkEnd := chunkStart + uint64(f.cfg.EventChunkSize) - 1
		if chunkEnd > endID {
			chunkEnd = endID
		}

		chunk, err := f.fetchChunk(ctx, chunkStart, chunkEnd)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			slog.Warn("[Fetcher] Chunk failed, continuing with partial results",
				"fetch_id", fetchID,
				"chain_id", f.ChainID(),
				"from_id", chunkStart,
				"to_id", chunkEnd,
				"error", err,
			)
			continue
		}
		results = append(results, chunk...)
	}

	slog.Debug("[Fetcher] Batch fetch complete",
		"fetch_id", fetchID,
		"chain_id", f.ChainID(),
		"from_id", startID,
		"to_id", endID,
		"found", len(results),
	)
	return results, nil
}

// fetchChunk runs one chunk's per-id reads concurrently. Individual read
// failures are logged and the id skipped; only a cancelled context fails
// the chunk.
func (f *Fetcher) fetchChunk(ctx context.Context, startID, endID uint64) ([]record.EventRecord, error) {
	slots := make([]*record.EventRecord, endID-startID+1)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.EventChunkSize)
	for id := startID; id <= endID; id++ {
		g.Go(func() error {
			rec, ok, err := f.FetchEventDetails(gCtx, id)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				slog.Warn("[Fetcher] Event read failed, skipping id",
					"chain_id", f.ChainID(),
					"event_id", id,
					"error", err,
				)
				return nil
			}
			if ok {
				slots[id-startID] = &rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]record.EventRecord, 0, len(slots))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

// FetchOrganizerEvents returns every event organized by the given
// address, with stats attached. Address comparison is byte-wise, which
// makes the hex-casing of the caller's input irrelevant.
func (f *Fetcher) FetchOrganizerEvents(ctx context.Context, organizer common.Address) ([]record.EventRecord, error) {
	count, err := f.EventCount(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	all, err := f.FetchEventsBatch(ctx, 1, count)
	if err != nil {
		return nil, err
	}

	mine := all[:0]
	for _, ev := range all {
		if ev.OrganizedBy(organizer) {
			mine = append(mine, ev)
		}
	}

	f.attachStats(ctx, mine)
	return mine, nil
}

// FetchAllEvents fetches the full range, applies organizer/status filters,
// windows by offset/limit, then attaches stats to the surviving page.
func (f *Fetcher) FetchAllEvents(ctx context.Context, q Query) ([]record.EventRecord, error) {
	count, err := f.EventCount(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	all, err := f.FetchEventsBatch(ctx, 1, count)
	if err != nil {
		return nil, err
	}

	filtered := all[:0]
	for _, ev := range all {
		if q.Organizer != nil && !ev.OrganizedBy(*q.Organizer) {
			continue
		}
		if len(q.Statuses) > 0 && !statusIn(ev.Status, q.Statuses) {
			continue
		}
		filtered = append(filtered, ev)
	}

	if q.Offset > 0 {
		if q.Offset >= len(filtered) {
			return nil, nil
		}
		filtered = filtered[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(filtered) {
		filtered = filtered[:q.Limit]
	}

	f.attachStats(ctx, filtered)
	return filtered, nil
}

// attachStats fetches stats for each event concurrently, bounded by the
// event chunk size.
func (f *Fetcher) attachStats(ctx context.Context, events []record.EventRecord) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, f.cfg.EventChunkSize)
	for i := range events {
		wg.Add(1)
		sem <- struct{}{}
		go func(ev *record.EventRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			ev.Stats = f.FetchEventStats(ctx, ev)
		}(&events[i])
	}
	wg.Wait()
}

func statusIn(s record.Status, set []record.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// isAbsent reports whether a detail-read error means "no such event"
// rather than a transport failure.
func isAbsent(err error) bool {
	return errors.Is(err, chain.ErrExecutionReverted)
}

// sortTokenIDs orders discovered token ids ascending for deterministic
// output.
func sortTokenIDs(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
