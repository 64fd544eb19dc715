// Package v1 defines the public wire shapes of the query API. Amounts
// appear twice: raw wei as a decimal string (lossless) and ether as a
// display value.
package v1

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gatewise-lab/project-gatewise/internal/core/record"
)

// etherDecimals is the fixed scale between the two denominations.
const etherDecimals = 18

// EventResponse is one event with its supplementary stats.
type EventResponse struct {
	EventID        uint64        `json:"event_id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Date           time.Time     `json:"date"`
	Venue          string        `json:"venue"`
	TicketPriceWei string        `json:"ticket_price_wei"`
	TicketPriceEth string        `json:"ticket_price_eth"`
	MaxSupply      uint64        `json:"max_supply"`
	CurrentSupply  uint64        `json:"current_supply"`
	SoldOut        bool          `json:"sold_out"`
	Organizer      string        `json:"organizer"`
	Status         string        `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	Stats          StatsResponse `json:"stats"`
}

// StatsResponse is the derived revenue view of one event.
type StatsResponse struct {
	TotalRevenueWei     string `json:"total_revenue_wei"`
	TotalRevenueEth     string `json:"total_revenue_eth"`
	WithdrawnRevenueWei string `json:"withdrawn_revenue_wei"`
	AvailableRevenueWei string `json:"available_revenue_wei"`
	AvailableRevenueEth string `json:"available_revenue_eth"`
	TicketsSold         uint64 `json:"tickets_sold"`
	TotalTickets        uint64 `json:"total_tickets"`
}

// TicketResponse is one held ticket with its denormalized event fields.
type TicketResponse struct {
	TokenID          uint64    `json:"token_id"`
	EventID          uint64    `json:"event_id"`
	TicketNumber     uint64    `json:"ticket_number"`
	PurchasePriceWei string    `json:"purchase_price_wei"`
	PurchasePriceEth string    `json:"purchase_price_eth"`
	PurchaseDate     time.Time `json:"purchase_date"`
	OriginalBuyer    string    `json:"original_buyer"`
	CurrentOwner     string    `json:"current_owner"`
	IsTransferred    bool      `json:"is_transferred"`
	EventName        string    `json:"event_name"`
	EventDescription string    `json:"event_description"`
	EventDate        time.Time `json:"event_date"`
	EventVenue       string    `json:"event_venue"`
	EventStatus      string    `json:"event_status"`
}

// EventFromRecord maps a domain record onto the wire shape.
func EventFromRecord(rec *record.EventRecord) EventResponse {
	return EventResponse{
		EventID:        rec.EventID,
		Name:           rec.Name,
		Description:    rec.Description,
		Date:           rec.Date,
		Venue:          rec.Venue,
		TicketPriceWei: weiString(rec.TicketPrice),
		TicketPriceEth: etherString(rec.TicketPrice),
		MaxSupply:      rec.MaxSupply,
		CurrentSupply:  rec.CurrentSupply,
		SoldOut:        rec.SoldOut(),
		Organizer:      rec.Organizer.Hex(),
		Status:         rec.Status.String(),
		CreatedAt:      rec.CreatedAt,
		Stats: StatsResponse{
			TotalRevenueWei:     weiString(rec.Stats.TotalRevenue),
			TotalRevenueEth:     etherString(rec.Stats.TotalRevenue),
			WithdrawnRevenueWei: weiString(rec.Stats.WithdrawnRevenue),
			AvailableRevenueWei: weiString(rec.Stats.AvailableRevenue),
			AvailableRevenueEth: etherString(rec.Stats.AvailableRevenue),
			TicketsSold:         rec.Stats.TicketsSold,
			TotalTickets:        rec.Stats.TotalTickets,
		},
	}
}

// EventsFromRecords maps a collection, preserving order.
func EventsFromRecords(recs []record.EventRecord) []EventResponse {
	out := make([]EventResponse, len(recs))
	for i := range recs {
		out[i] = EventFromRecord(&recs[i])
	}
	return out
}

// TicketFromRecord maps a domain ticket onto the wire shape.
func TicketFromRecord(rec *record.TicketRecord) TicketResponse {
	return TicketResponse{
		TokenID:          rec.TokenID,
		EventID:          rec.EventID,
		TicketNumber:     rec.TicketNumber,
		PurchasePriceWei: weiString(rec.PurchasePrice),
		PurchasePriceEth: etherString(rec.PurchasePrice),
		PurchaseDate:     rec.PurchaseDate,
		OriginalBuyer:    rec.OriginalBuyer.Hex(),
		CurrentOwner:     rec.CurrentOwner.Hex(),
		IsTransferred:    rec.Transferred(),
		EventName:        rec.EventName,
		EventDescription: rec.EventDescription,
		EventDate:        rec.EventDate,
		EventVenue:       rec.EventVenue,
		EventStatus:      rec.EventStatus.String(),
	}
}

// TicketsFromRecords maps a collection, preserving order.
func TicketsFromRecords(recs []record.TicketRecord) []TicketResponse {
	out := make([]TicketResponse, len(recs))
	for i := range recs {
		out[i] = TicketFromRecord(&recs[i])
	}
	return out
}

func weiString(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return wei.String()
}

func etherString(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}
