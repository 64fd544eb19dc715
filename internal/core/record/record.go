package record

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the on-chain lifecycle state of an event.
type Status uint8

const (
	StatusActive Status = iota
	StatusPaused
	StatusCancelled
	StatusCompleted
)

var statusNames = map[Status]string{
	StatusActive:    "active",
	StatusPaused:    "paused",
	StatusCancelled: "cancelled",
	StatusCompleted: "completed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// ParseStatus maps the raw uint8 from the contract to a Status.
// Out-of-range values are rejected rather than defaulted; the contract
// only ever emits 0..3, anything else means we decoded the wrong tuple.
func ParseStatus(raw uint8) (Status, error) {
	s := Status(raw)
	if _, ok := statusNames[s]; !ok {
		return 0, fmt.Errorf("%w: status value %d out of range", ErrMalformedRecord, raw)
	}
	return s, nil
}

// ParseStatusName maps a lowercase status name (API filter input) to a Status.
func ParseStatusName(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// EventRecord is the typed view of one on-chain event.
// Immutable except CurrentSupply and Status, which only change when a
// confirmed transaction is observed through refetch.
type EventRecord struct {
	EventID       uint64         `json:"event_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Date          time.Time      `json:"date"`
	Venue         string         `json:"venue"`
	TicketPrice   *big.Int       `json:"-"`
	MaxSupply     uint64         `json:"max_supply"`
	CurrentSupply uint64         `json:"current_supply"`
	Organizer     common.Address `json:"organizer"`
	Status        Status         `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`

	// Stats is supplementary revenue data; zeroed when the stats reads fail.
	Stats EventStats `json:"-"`
}

// SoldOut reports whether no tickets remain.
func (e *EventRecord) SoldOut() bool {
	return e.CurrentSupply >= e.MaxSupply
}

// OrganizedBy compares the organizer address case-insensitively.
// common.Address comparison is byte-wise, which already ignores the
// checksum casing of the original hex input.
func (e *EventRecord) OrganizedBy(addr common.Address) bool {
	return e.Organizer == addr
}

// Validate ensures the record satisfies its structural invariants.
func (e *EventRecord) Validate() error {
	if e.EventID < 1 {
		return fmt.Errorf("%w: event id must be >= 1", ErrMalformedRecord)
	}
	if e.Name == "" {
		return fmt.Errorf("%w: event name is empty", ErrMalformedRecord)
	}
	if e.TicketPrice == nil || e.TicketPrice.Sign() < 0 {
		return fmt.Errorf("%w: ticket price missing or negative", ErrMalformedRecord)
	}
	if e.Organizer == (common.Address{}) {
		return fmt.Errorf("%w: organizer is the zero address", ErrMalformedRecord)
	}
	if e.CurrentSupply > e.MaxSupply {
		return fmt.Errorf("%w: current supply %d exceeds max supply %d",
			ErrMalformedRecord, e.CurrentSupply, e.MaxSupply)
	}
	return nil
}

// EventStats is derived revenue data combined from two contract reads.
// Invariant: TotalRevenue = WithdrawnRevenue + AvailableRevenue.
type EventStats struct {
	TotalRevenue     *big.Int `json:"-"`
	WithdrawnRevenue *big.Int `json:"-"`
	AvailableRevenue *big.Int `json:"-"`
	TicketsSold      uint64   `json:"tickets_sold"`
	TotalTickets     uint64   `json:"total_tickets"`
}

// NewEventStats derives withdrawn revenue as total minus available,
// clamped at zero so a lagging totalRevenue read can't go negative.
func NewEventStats(total, available *big.Int, sold, totalTickets uint64) EventStats {
	if total == nil {
		total = new(big.Int)
	}
	if available == nil {
		available = new(big.Int)
	}
	withdrawn := new(big.Int).Sub(total, available)
	if withdrawn.Sign() < 0 {
		withdrawn.SetInt64(0)
		total = new(big.Int).Set(available)
	}
	return EventStats{
		TotalRevenue:     total,
		WithdrawnRevenue: withdrawn,
		AvailableRevenue: available,
		TicketsSold:      sold,
		TotalTickets:     totalTickets,
	}
}

// ZeroStats is the synthetic fallback used when the stats reads fail.
// Stats are supplementary; the event itself remains usable without them.
func ZeroStats(sold, totalTickets uint64) EventStats {
	return EventStats{
		TotalRevenue:     new(big.Int),
		WithdrawnRevenue: new(big.Int),
		AvailableRevenue: new(big.Int),
		TicketsSold:      sold,
		TotalTickets:     totalTickets,
	}
}

// TicketRecord is a point-in-time snapshot of one ERC-721 ticket.
// Ownership is authoritative on-chain; CurrentOwner reflects the moment
// of the fetch, not a live subscription.
type TicketRecord struct {
	TokenID       uint64         `json:"token_id"`
	EventID       uint64         `json:"event_id"`
	TicketNumber  uint64         `json:"ticket_number"`
	PurchasePrice *big.Int       `json:"-"`
	PurchaseDate  time.Time      `json:"purchase_date"`
	OriginalBuyer common.Address `json:"original_buyer"`
	CurrentOwner  common.Address `json:"current_owner"`

	// Denormalized event fields, filled after the event lookup.
	EventName        string    `json:"event_name"`
	EventDescription string    `json:"event_description"`
	EventDate        time.Time `json:"event_date"`
	EventVenue       string    `json:"event_venue"`
	EventStatus      Status    `json:"-"`
}

// Transferred reports whether the ticket has changed hands since purchase.
func (t *TicketRecord) Transferred() bool {
	return t.OriginalBuyer != t.CurrentOwner
}

// DenormalizeEvent copies display fields from the parent event onto the ticket.
func (t *TicketRecord) DenormalizeEvent(ev *EventRecord) {
	t.EventName = ev.Name
	t.EventDescription = ev.Description
	t.EventDate = ev.Date
	t.EventVenue = ev.Venue
	t.EventStatus = ev.Status
}

// Validate ensures the record satisfies its structural invariants.
func (t *TicketRecord) Validate() error {
	if t.TokenID < 1 {
		return fmt.Errorf("%w: token id must be >= 1", ErrMalformedRecord)
	}
	if t.EventID < 1 {
		return fmt.Errorf("%w: event id must be >= 1", ErrMalformedRecord)
	}
	if t.PurchasePrice == nil || t.PurchasePrice.Sign() < 0 {
		return fmt.Errorf("%w: purchase price missing or negative", ErrMalformedRecord)
	}
	if t.CurrentOwner == (common.Address{}) {
		return fmt.Errorf("%w: current owner is the zero address", ErrMalformedRecord)
	}
	return nil
}
