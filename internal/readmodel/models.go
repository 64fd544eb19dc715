package readmodel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gatewise-lab/project-gatewise/internal/cache"
	"github.com/gatewise-lab/project-gatewise/internal/core/record"
	"github.com/gatewise-lab/project-gatewise/internal/fetcher"
	"github.com/gatewise-lab/project-gatewise/internal/registry"
)

const (
	// DefaultEventsTTL caches event listings for ten minutes.
	DefaultEventsTTL = 10 * time.Minute
	// DefaultTicketsTTL caches per-owner ticket listings for five minutes.
	DefaultTicketsTTL = 5 * time.Minute

	archiveTimeout = 30 * time.Second
)

// Archiver persists successful fetch results for offline analysis.
// Archiving is strictly best-effort; a failure never affects the read path.
type Archiver interface {
	ArchiveEvents(ctx context.Context, chainID uint64, events []record.EventRecord) error
	ArchiveTickets(ctx context.Context, chainID uint64, tickets []record.TicketRecord) error
}

// Store bundles the three read models over one fetcher registry. All
// event-shaped models share one cache so a write-driven invalidation
// reaches every affected key.
type Store struct {
	reg      *registry.Registry
	events   *Collection[record.EventRecord]
	tickets  *Collection[record.TicketRecord]
	archiver Archiver
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithArchiver attaches a snapshot archiver.
func WithArchiver(a Archiver) StoreOption {
	return func(s *Store) { s.archiver = a }
}

// NewStore creates the read-model layer. TTLs of zero fall back to the
// defaults above.
func NewStore(reg *registry.Registry, eventsTTL, ticketsTTL time.Duration, maxAttempts int, opts ...StoreOption) *Store {
	if eventsTTL <= 0 {
		eventsTTL = DefaultEventsTTL
	}
	if ticketsTTL <= 0 {
		ticketsTTL = DefaultTicketsTTL
	}

	s := &Store{
		reg: reg,
		events: NewCollection("events",
			cache.New(cache.WithSizer(eventsSizer)), eventsTTL, maxAttempts),
		tickets: NewCollection("tickets",
			cache.New(cache.WithSizer(ticketsSizer)), ticketsTTL, maxAttempts),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events exposes the event collection for subscriptions and diagnostics.
func (s *Store) Events() *Collection[record.EventRecord] { return s.events }

// Tickets exposes the ticket collection for subscriptions and diagnostics.
func (s *Store) Tickets() *Collection[record.TicketRecord] { return s.tickets }

// OrganizerEvents loads all events organized by the given address.
func (s *Store) OrganizerEvents(ctx context.Context, chainID uint64, organizer common.Address) Snapshot[record.EventRecord] {
	return s.loadEvents(ctx, OrganizerEventsKey(chainID, organizer), chainID,
		func(ctx context.Context, f *fetcher.Fetcher) ([]record.EventRecord, error) {
			return f.FetchOrganizerEvents(ctx, organizer)
		})
}

// AllEvents loads the filtered event listing. The cache key includes the
// filter signature so different filter combinations never collide.
func (s *Store) AllEvents(ctx context.Context, chainID uint64, q fetcher.Query) Snapshot[record.EventRecord] {
	return s.loadEvents(ctx, AllEventsKey(chainID, q), chainID,
		func(ctx context.Context, f *fetcher.Fetcher) ([]record.EventRecord, error) {
			return f.FetchAllEvents(ctx, q)
		})
}

// Event loads one event by id, served from the all-events path's cache
// granularity: a single-id fetch with stats attached.
func (s *Store) Event(ctx context.Context, chainID uint64, eventID uint64) Snapshot[record.EventRecord] {
	key := EventKey(chainID, eventID)
	return s.loadEvents(ctx, key, chainID,
		func(ctx context.Context, f *fetcher.Fetcher) ([]record.EventRecord, error) {
			ev, ok, err := f.FetchEventDetails(ctx, eventID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			ev.Stats = f.FetchEventStats(ctx, &ev)
			return []record.EventRecord{ev}, nil
		})
}

// UserTickets loads the tickets currently held by owner.
func (s *Store) UserTickets(ctx context.Context, chainID uint64, owner common.Address) Snapshot[record.TicketRecord] {
	key := UserTicketsKey(chainID, owner)
	f, err := s.reg.ForChain(chainID)
	if err != nil {
		return s.tickets.commitSetupError(key, err)
	}

	snap := s.tickets.Load(ctx, key, func(ctx context.Context) ([]record.TicketRecord, error) {
		return f.FetchOwnerTickets(ctx, owner)
	})
	if snap.State == StateReady && !snap.FromCache {
		s.archiveTickets(chainID, snap.Collection)
	}
	return snap
}

// RefetchAllEvents forces a reload for one filtered listing.
func (s *Store) RefetchAllEvents(ctx context.Context, chainID uint64, q fetcher.Query) Snapshot[record.EventRecord] {
	f, err := s.reg.ForChain(chainID)
	if err != nil {
		return s.events.commitSetupError(AllEventsKey(chainID, q), err)
	}
	return s.events.Refetch(ctx, AllEventsKey(chainID, q),
		func(ctx context.Context) ([]record.EventRecord, error) {
			return f.FetchAllEvents(ctx, q)
		})
}

// RefetchOrganizerEvents forces a reload for the organizer listing.
func (s *Store) RefetchOrganizerEvents(ctx context.Context, chainID uint64, organizer common.Address) Snapshot[record.EventRecord] {
	f, err := s.reg.ForChain(chainID)
	if err != nil {
		return s.events.commitSetupError(OrganizerEventsKey(chainID, organizer), err)
	}
	return s.events.Refetch(ctx, OrganizerEventsKey(chainID, organizer),
		func(ctx context.Context) ([]record.EventRecord, error) {
			return f.FetchOrganizerEvents(ctx, organizer)
		})
}

// RefetchUserTickets forces a reload for the owner's ticket listing.
func (s *Store) RefetchUserTickets(ctx context.Context, chainID uint64, owner common.Address) Snapshot[record.TicketRecord] {
	f, err := s.reg.ForChain(chainID)
	if err != nil {
		return s.tickets.commitSetupError(UserTicketsKey(chainID, owner), err)
	}
	return s.tickets.Refetch(ctx, UserTicketsKey(chainID, owner),
		func(ctx context.Context) ([]record.TicketRecord, error) {
			return f.FetchOwnerTickets(ctx, owner)
		})
}

// InvalidateOrganizer drops the organizer's event listing after a
// confirmed write.
func (s *Store) InvalidateOrganizer(chainID uint64, organizer common.Address) {
	s.events.Invalidate(OrganizerEventsKey(chainID, organizer))
}

// InvalidateOwnerTickets drops the owner's ticket listing after a
// confirmed transfer or purchase.
func (s *Store) InvalidateOwnerTickets(chainID uint64, owner common.Address) {
	s.tickets.Invalidate(UserTicketsKey(chainID, owner))
}

// InvalidateAllEvents drops every cached event listing for the chain.
// Filtered listings share the underlying data, so any event mutation
// invalidates them together.
func (s *Store) InvalidateAllEvents(chainID uint64) {
	s.events.InvalidatePrefix(allEventsPrefix(chainID))
	s.events.InvalidatePrefix(eventKeyPrefix(chainID))
}

func (s *Store) loadEvents(
	ctx context.Context,
	key string,
	chainID uint64,
	fetch func(context.Context, *fetcher.Fetcher) ([]record.EventRecord, error),
) Snapshot[record.EventRecord] {
	f, err := s.reg.ForChain(chainID)
	if err != nil {
		return s.events.commitSetupError(key, err)
	}

	snap := s.events.Load(ctx, key, func(ctx context.Context) ([]record.EventRecord, error) {
		return fetch(ctx, f)
	})
	if snap.State == StateReady && !snap.FromCache {
		s.archiveEvents(chainID, snap.Collection)
	}
	return snap
}

func (s *Store) archiveEvents(chainID uint64, events []record.EventRecord) {
	if s.archiver == nil || len(events) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.archiver.ArchiveEvents(ctx, chainID, events); err != nil {
			slog.Warn("[ReadModel] Event snapshot archive failed",
				"chain_id", chainID,
				"count", len(events),
				"error", err,
			)
		}
	}()
}

func (s *Store) archiveTickets(chainID uint64, tickets []record.TicketRecord) {
	if s.archiver == nil || len(tickets) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.archiver.ArchiveTickets(ctx, chainID, tickets); err != nil {
			slog.Warn("[ReadModel] Ticket snapshot archive failed",
				"chain_id", chainID,
				"count", len(tickets),
				"error", err,
			)
		}
	}()
}

// eventsSizer approximates the in-memory footprint of a cached listing
// for the MemoryUsage statistic. Strings dominate; fixed fields are a
// flat estimate.
func eventsSizer(events []record.EventRecord) int {
	size := 0
	for i := range events {
		size += 160 + len(events[i].Name) + len(events[i].Description) + len(events[i].Venue)
	}
	return size
}

func ticketsSizer(tickets []record.TicketRecord) int {
	size := 0
	for i := range tickets {
		size += 200 + len(tickets[i].EventName) + len(tickets[i].EventDescription) + len(tickets[i].EventVenue)
	}
	return size
}

// OrganizerEventsKey is the cache key for one organizer's listing.
func OrganizerEventsKey(chainID uint64, organizer common.Address) string {
	return fmt.Sprintf("organizer:%d:%s", chainID, strings.ToLower(organizer.Hex()))
}

// UserTicketsKey is the cache key for one owner's ticket listing.
func UserTicketsKey(chainID uint64, owner common.Address) string {
	return fmt.Sprintf("tickets:%d:%s", chainID, strings.ToLower(owner.Hex()))
}

// EventKey is the cache key for one event's detail view.
func EventKey(chainID uint64, eventID uint64) string {
	return fmt.Sprintf("event:%d:%d", chainID, eventID)
}

func eventKeyPrefix(chainID uint64) string {
	return fmt.Sprintf("event:%d:", chainID)
}

func allEventsPrefix(chainID uint64) string {
	return fmt.Sprintf("all:%d:", chainID)
}

// AllEventsKey is the cache key for a filtered listing; the filter
// signature is folded in so combinations never collide.
func AllEventsKey(chainID uint64, q fetcher.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%sorg=", allEventsPrefix(chainID))
	if q.Organizer != nil {
		b.WriteString(strings.ToLower(q.Organizer.Hex()))
	}
	statuses := make([]string, 0, len(q.Statuses))
	for _, st := range q.Statuses {
		statuses = append(statuses, st.String())
	}
	sort.Strings(statuses)
	fmt.Fprintf(&b, ":st=%s:lim=%d:off=%d", strings.Join(statuses, ","), q.Limit, q.Offset)
	return b.String()
}
