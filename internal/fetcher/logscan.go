package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gatewise-lab/project-gatewise/internal/chain"
	"github.com/gatewise-lab/project-gatewise/internal/core/record"
)

// ticketPurchasedBuyerTopic is the position of the indexed buyer argument
// after the event signature topic: TicketPurchased(tokenId, eventId, buyer, ...).
const ticketPurchasedBuyerTopic = 3

// FetchOwnerTickets discovers the tickets currently held by owner via a
// progressive purchase-log scan, then resolves each token to a full
// TicketRecord with live-ownership reconciliation. Tickets the owner has
// transferred away are dropped by the ownerOf check. Tickets transferred
// TO the owner never appear in their buyer-filtered logs, so when the
// on-chain balance says tokens are missing, an unfiltered scan over the
// long window picks them up.
func (f *Fetcher) FetchOwnerTickets(ctx context.Context, owner common.Address) ([]record.TicketRecord, error) {
	scanID := uuid.NewString()

	head, err := f.headBlock(ctx)
	if err != nil {
		return nil, err
	}

	window := f.blocksFor(f.cfg.InitialScanWindow)
	tokenIDs, err := f.scanPurchaseLogs(ctx, scanID, &owner, head, window)
	if err != nil {
		return nil, err
	}

	// Common case: recent buyers are found in the short window. Expand
	// once for older holders before concluding the wallet has nothing.
	if len(tokenIDs) == 0 {
		slog.Debug("[Fetcher] Initial scan window empty, expanding",
			"scan_id", scanID,
			"chain_id", f.ChainID(),
			"owner", owner.Hex(),
		)
		window = f.blocksFor(f.cfg.ExpandedScanWindow)
		tokenIDs, err = f.scanPurchaseLogs(ctx, scanID, &owner, head, window)
		if err != nil {
			return nil, err
		}
	}

	sortTokenIDs(tokenIDs)
	tickets, err := f.resolveTickets(ctx, scanID, owner, tokenIDs)
	if err != nil {
		return nil, err
	}

	extra, err := f.findTransferredIn(ctx, scanID, owner, head, f.blocksFor(f.cfg.ExpandedScanWindow), tickets, tokenIDs)
	if err != nil {
		return nil, err
	}
	return append(tickets, extra...), nil
}

// findTransferredIn covers tickets acquired second-hand: the on-chain
// balance is authoritative, so when it exceeds what the buyer-filtered
// scan resolved, an unfiltered purchase scan is reconciled token by
// token. The rescan always spans the long window; a transferred-in
// token's purchase log can be far older than the owner's own recent
// purchases. The probe is best-effort; a failed balanceOf read keeps
// the buyer-derived results.
func (f *Fetcher) findTransferredIn(
	ctx context.Context,
	scanID string,
	owner common.Address,
	head, windowBlocks uint64,
	resolved []record.TicketRecord,
	scanned []uint64,
) ([]record.TicketRecord, error) {
	balanceTuple, err := f.call(ctx, "balanceOf", owner)
	if err != nil {
		slog.Warn("[Fetcher] balanceOf probe failed, skipping transferred-in scan",
			"scan_id", scanID,
			"chain_id", f.ChainID(),
			"owner", owner.Hex(),
			"error", err,
		)
		return nil, nil
	}
	if len(balanceTuple) != 1 {
		return nil, nil
	}
	balance, ok := balanceTuple[0].(*big.Int)
	if !ok || !balance.IsUint64() || balance.Uint64() <= uint64(len(resolved)) {
		return nil, nil
	}

	allIDs, err := f.scanPurchaseLogs(ctx, scanID, nil, head, windowBlocks)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]struct{}, len(scanned))
	for _, id := range scanned {
		seen[id] = struct{}{}
	}
	candidates := allIDs[:0]
	for _, id := range allIDs {
		if _, dup := seen[id]; !dup {
			candidates = append(candidates, id)
		}
	}

	sortTokenIDs(candidates)
	return f.resolveTickets(ctx, scanID, owner, candidates)
}

func (f *Fetcher) headBlock(ctx context.Context) (uint64, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
	defer cancel()

	head, err := f.client.BlockNumber(callCtx)
	if err != nil {
		return 0, fmt.Errorf("head block: %w", err)
	}
	return head, nil
}

func (f *Fetcher) blocksFor(window time.Duration) uint64 {
	blocks := uint64(window / f.cfg.BlockTime)
	if blocks == 0 {
		blocks = 1
	}
	return blocks
}

// scanPurchaseLogs queries TicketPurchased logs over the trailing window,
// split into fixed block-range chunks queried in parallel. A nil buyer
// scans without the indexed-buyer filter. A failed chunk degrades to zero
// results for that chunk.
func (f *Fetcher) scanPurchaseLogs(ctx context.Context, scanID string, buyer *common.Address, head, windowBlocks uint64) ([]uint64, error) {
	from := uint64(0)
	if head > windowBlocks {
		from = head - windowBlocks
	}

	type span struct{ from, to uint64 }
	var spans []span
	for start := from; start <= head; start += f.cfg.LogChunkBlocks {
		end := start + f.cfg.LogChunkBlocks - 1
		if end > head {
			end = head
		}
		spans = append(spans, span{start, end})
	}

	var topics [][]interface{}
	if buyer != nil {
		topics = [][]interface{}{nil, nil, {*buyer}}
	}

	chunkLogs := make([][]types.Log, len(spans))
	g, gCtx := errgroup.WithContext(ctx)
	for i, sp := range spans {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gCtx, f.cfg.CallTimeout)
			defer cancel()

			logs, err := f.client.FilterLogs(callCtx, chain.LogQuery{
				Event:     "TicketPurchased",
				FromBlock: sp.from,
				ToBlock:   sp.to,
				Topics:    topics,
			})
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				slog.Warn("[Fetcher] Log chunk failed, treating as empty",
					"scan_id", scanID,
					"chain_id", f.ChainID(),
					"from_block", sp.from,
					"to_block", sp.to,
					"error", err,
				)
				return nil
			}
			chunkLogs[i] = logs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[uint64]struct{})
	var tokenIDs []uint64
	for _, logs := range chunkLogs {
		for _, l := range logs {
			tokenID, ok := tokenIDFromPurchaseLog(l)
			if !ok {
				slog.Warn("[Fetcher] Skipping malformed TicketPurchased log",
					"scan_id", scanID,
					"chain_id", f.ChainID(),
					"tx", l.TxHash.Hex(),
				)
				continue
			}
			if _, dup := seen[tokenID]; dup {
				continue
			}
			seen[tokenID] = struct{}{}
			tokenIDs = append(tokenIDs, tokenID)
		}
	}

	slog.Debug("[Fetcher] Purchase log scan complete",
		"scan_id", scanID,
		"chain_id", f.ChainID(),
		"from_block", from,
		"to_block", head,
		"chunks", len(spans),
		"tokens", len(tokenIDs),
	)
	return tokenIDs, nil
}

// tokenIDFromPurchaseLog extracts the indexed tokenId (topic 1).
func tokenIDFromPurchaseLog(l types.Log) (uint64, bool) {
	if len(l.Topics) < ticketPurchasedBuyerTopic+1 {
		return 0, false
	}
	id := new(big.Int).SetBytes(l.Topics[1].Bytes())
	if !id.IsUint64() || id.Uint64() < 1 {
		return 0, false
	}
	return id.Uint64(), true
}

// resolveTickets resolves token ids to TicketRecords in concurrent
// batches. Ownership is reconciled against the live ownerOf read: a
// token whose current owner no longer matches the queried address was
// re-transferred and is excluded. Per-token failures drop the token.
func (f *Fetcher) resolveTickets(ctx context.Context, scanID string, owner common.Address, tokenIDs []uint64) ([]record.TicketRecord, error) {
	slots := make([]*record.TicketRecord, len(tokenIDs))

	for batchStart := 0; batchStart < len(tokenIDs); batchStart += f.cfg.TicketBatchSize {
		batchEnd := batchStart + f.cfg.TicketBatchSize
		if batchEnd > len(tokenIDs) {
			batchEnd = len(tokenIDs)
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(f.cfg.TicketBatchSize)
		for i := batchStart; i < batchEnd; i++ {
			g.Go(func() error {
				rec, ok, err := f.resolveTicket(gCtx, owner, tokenIDs[i])
				if err != nil {
					if gCtx.Err() != nil {
						return gCtx.Err()
					}
					slog.Warn("[Fetcher] Ticket resolution failed, skipping token",
						"scan_id", scanID,
						"chain_id", f.ChainID(),
						"token_id", tokenIDs[i],
						"error", err,
					)
					return nil
				}
				if ok {
					slots[i] = &rec
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	tickets := make([]record.TicketRecord, 0, len(slots))
	eventCache := make(map[uint64]*record.EventRecord)
	for _, t := range slots {
		if t == nil {
			continue
		}
		if err := f.denormalizeTicket(ctx, t, eventCache); err != nil {
			slog.Warn("[Fetcher] Event lookup for ticket failed, keeping bare record",
				"scan_id", scanID,
				"chain_id", f.ChainID(),
				"token_id", t.TokenID,
				"event_id", t.EventID,
				"error", err,
			)
		}
		tickets = append(tickets, *t)
	}
	return tickets, nil
}

// resolveTicket fetches ownership and metadata for one token. ok=false
// means the token exists but is no longer held by owner.
func (f *Fetcher) resolveTicket(ctx context.Context, owner common.Address, tokenID uint64) (record.TicketRecord, bool, error) {
	ownerTuple, err := f.call(ctx, "ownerOf", new(big.Int).SetUint64(tokenID))
	if err != nil {
		if isAbsent(err) {
			// Burned or never minted: not an error for a log-derived id.
			return record.TicketRecord{}, false, nil
		}
		return record.TicketRecord{}, false, fmt.Errorf("ownerOf %d: %w", tokenID, err)
	}
	if len(ownerTuple) != 1 {
		return record.TicketRecord{}, false, fmt.Errorf("%w: ownerOf %d returned %d values", record.ErrMalformedRecord, tokenID, len(ownerTuple))
	}
	currentOwner, ok := ownerTuple[0].(common.Address)
	if !ok {
		return record.TicketRecord{}, false, fmt.Errorf("%w: ownerOf %d is not an address", record.ErrMalformedRecord, tokenID)
	}
	if currentOwner != owner {
		return record.TicketRecord{}, false, nil
	}

	infoTuple, err := f.call(ctx, "getTicketInfo", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return record.TicketRecord{}, false, fmt.Errorf("ticket %d info: %w", tokenID, err)
	}

	rec, err := record.TicketRecordFromTuple(tokenID, infoTuple, currentOwner)
	if err != nil {
		return record.TicketRecord{}, false, err
	}
	return rec, true, nil
}

func (f *Fetcher) denormalizeTicket(ctx context.Context, t *record.TicketRecord, eventCache map[uint64]*record.EventRecord) error {
	ev, cached := eventCache[t.EventID]
	if !cached {
		fetched, ok, err := f.FetchEventDetails(ctx, t.EventID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("event %d referenced by ticket %d not found", t.EventID, t.TokenID)
		}
		ev = &fetched
		eventCache[t.EventID] = ev
	}
	t.DenormalizeEvent(ev)
	return nil
}
