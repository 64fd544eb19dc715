package postgres

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gatewise-lab/project-gatewise/internal/core/record"
)

// weiText renders a wei amount for a NUMERIC column. Nil maps to "0" so
// a missing stats read archives as zero rather than NULL.
func weiText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseWeiColumn converts a NUMERIC column value back to a big.Int.
func parseWeiColumn(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("malformed wei column value %q", s)
	}
	return v, nil
}

func addressText(a common.Address) string {
	return strings.ToLower(a.Hex())
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventSnapshot scans one event_snapshots row.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventSnapshot(row scanner) (record.EventRecord, error) {
	var (
		ev                      record.EventRecord
		price, total, available string
		organizer               string
		status                  int
		sold                    uint64
	)

	err := row.Scan(
		&ev.EventID,
		&ev.Name,
		&ev.Description,
		&ev.Date,
		&ev.Venue,
		&price,
		&ev.MaxSupply,
		&ev.CurrentSupply,
		&organizer,
		&status,
		&ev.CreatedAt,
		&total,
		&available,
		&sold,
	)
	if err != nil {
		return record.EventRecord{}, fmt.Errorf("failed to scan event snapshot row: %w", err)
	}

	if ev.TicketPrice, err = parseWeiColumn(price); err != nil {
		return record.EventRecord{}, err
	}
	totalWei, err := parseWeiColumn(total)
	if err != nil {
		return record.EventRecord{}, err
	}
	availableWei, err := parseWeiColumn(available)
	if err != nil {
		return record.EventRecord{}, err
	}

	if ev.Status, err = record.ParseStatus(uint8(status)); err != nil {
		return record.EventRecord{}, err
	}
	if ev.Organizer, err = record.ParseAddress(organizer); err != nil {
		return record.EventRecord{}, err
	}

	ev.Stats = record.NewEventStats(totalWei, availableWei, sold, ev.MaxSupply)
	return ev, nil
}

// scanTicketSnapshot scans one ticket_snapshots row.
func scanTicketSnapshot(row scanner) (record.TicketRecord, error) {
	var (
		t            record.TicketRecord
		price        string
		buyer, owner string
	)

	err := row.Scan(
		&t.TokenID,
		&t.EventID,
		&t.TicketNumber,
		&price,
		&t.PurchaseDate,
		&buyer,
		&owner,
		&t.EventName,
		&t.EventDate,
		&t.EventVenue,
	)
	if err != nil {
		return record.TicketRecord{}, fmt.Errorf("failed to scan ticket snapshot row: %w", err)
	}

	if t.PurchasePrice, err = parseWeiColumn(price); err != nil {
		return record.TicketRecord{}, err
	}
	if t.OriginalBuyer, err = record.ParseAddress(buyer); err != nil {
		return record.TicketRecord{}, err
	}
	if t.CurrentOwner, err = record.ParseAddress(owner); err != nil {
		return record.TicketRecord{}, err
	}
	return t, nil
}
