package record

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrMalformedRecord marks on-chain data that failed shape validation.
// Callers must treat it as non-retryable: the data will not self-correct.
var ErrMalformedRecord = errors.New("malformed on-chain record")

// Field positions in the getEventDetails return tuple.
const (
	evtFieldName = iota
	evtFieldDescription
	evtFieldDate
	evtFieldVenue
	evtFieldTicketPrice
	evtFieldMaxSupply
	evtFieldCurrentSupply
	evtFieldOrganizer
	evtFieldStatus
	evtFieldCreatedAt
	evtFieldCount
)

// Field positions in the getTicketInfo return tuple.
const (
	tktFieldEventID = iota
	tktFieldTicketNumber
	tktFieldPurchasePrice
	tktFieldPurchaseDate
	tktFieldOriginalBuyer
	tktFieldCount
)

// EventRecordFromTuple maps a raw getEventDetails tuple into a validated
// EventRecord. On malformed input it returns an error rather than a
// partially-populated record.
func EventRecordFromTuple(eventID uint64, tuple []interface{}) (EventRecord, error) {
	if len(tuple) != evtFieldCount {
		return EventRecord{}, fmt.Errorf("%w: event tuple has %d fields, want %d",
			ErrMalformedRecord, len(tuple), evtFieldCount)
	}

	name, err := stringField(tuple, evtFieldName, "name")
	if err != nil {
		return EventRecord{}, err
	}
	description, err := stringField(tuple, evtFieldDescription, "description")
	if err != nil {
		return EventRecord{}, err
	}
	date, err := unixField(tuple, evtFieldDate, "date")
	if err != nil {
		return EventRecord{}, err
	}
	venue, err := stringField(tuple, evtFieldVenue, "venue")
	if err != nil {
		return EventRecord{}, err
	}
	price, err := bigField(tuple, evtFieldTicketPrice, "ticketPrice")
	if err != nil {
		return EventRecord{}, err
	}
	maxSupply, err := uintField(tuple, evtFieldMaxSupply, "maxSupply")
	if err != nil {
		return EventRecord{}, err
	}
	currentSupply, err := uintField(tuple, evtFieldCurrentSupply, "currentSupply")
	if err != nil {
		return EventRecord{}, err
	}
	organizer, err := addressField(tuple, evtFieldOrganizer, "organizer")
	if err != nil {
		return EventRecord{}, err
	}
	rawStatus, err := uintField(tuple, evtFieldStatus, "status")
	if err != nil {
		return EventRecord{}, err
	}
	status, err := ParseStatus(uint8(rawStatus))
	if err != nil {
		return EventRecord{}, err
	}
	createdAt, err := unixField(tuple, evtFieldCreatedAt, "createdAt")
	if err != nil {
		return EventRecord{}, err
	}

	rec := EventRecord{
		EventID:       eventID,
		Name:          name,
		Description:   description,
		Date:          date,
		Venue:         venue,
		TicketPrice:   price,
		MaxSupply:     maxSupply,
		CurrentSupply: currentSupply,
		Organizer:     organizer,
		Status:        status,
		CreatedAt:     createdAt,
		Stats:         ZeroStats(currentSupply, maxSupply),
	}
	if err := rec.Validate(); err != nil {
		return EventRecord{}, err
	}
	return rec, nil
}

// TicketRecordFromTuple maps a raw getTicketInfo tuple plus the ownerOf
// result into a validated TicketRecord. Denormalized event fields are
// filled later via DenormalizeEvent.
func TicketRecordFromTuple(tokenID uint64, tuple []interface{}, owner common.Address) (TicketRecord, error) {
	if len(tuple) != tktFieldCount {
		return TicketRecord{}, fmt.Errorf("%w: ticket tuple has %d fields, want %d",
			ErrMalformedRecord, len(tuple), tktFieldCount)
	}

	eventID, err := uintField(tuple, tktFieldEventID, "eventId")
	if err != nil {
		return TicketRecord{}, err
	}
	ticketNumber, err := uintField(tuple, tktFieldTicketNumber, "ticketNumber")
	if err != nil {
		return TicketRecord{}, err
	}
	price, err := bigField(tuple, tktFieldPurchasePrice, "purchasePrice")
	if err != nil {
		return TicketRecord{}, err
	}
	purchaseDate, err := unixField(tuple, tktFieldPurchaseDate, "purchaseDate")
	if err != nil {
		return TicketRecord{}, err
	}
	buyer, err := addressField(tuple, tktFieldOriginalBuyer, "originalBuyer")
	if err != nil {
		return TicketRecord{}, err
	}

	rec := TicketRecord{
		TokenID:       tokenID,
		EventID:       eventID,
		TicketNumber:  ticketNumber,
		PurchasePrice: price,
		PurchaseDate:  purchaseDate,
		OriginalBuyer: buyer,
		CurrentOwner:  owner,
	}
	if err := rec.Validate(); err != nil {
		return TicketRecord{}, err
	}
	return rec, nil
}

// ParseAddress validates a caller-supplied hex address: 0x prefix and
// exactly 40 hex digits. Used on API inputs before they reach the fetcher.
func ParseAddress(s string) (common.Address, error) {
	if len(s) != 2+2*common.AddressLength || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return common.Address{}, fmt.Errorf("%w: address %q must be 0x-prefixed and 20 bytes",
			ErrMalformedRecord, s)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: address %q is not valid hex", ErrMalformedRecord, s)
	}
	return common.HexToAddress(s), nil
}

func stringField(tuple []interface{}, idx int, name string) (string, error) {
	v, ok := tuple[idx].(string)
	if !ok {
		return "", fmt.Errorf("%w: field %s is %T, want string", ErrMalformedRecord, name, tuple[idx])
	}
	return v, nil
}

func addressField(tuple []interface{}, idx int, name string) (common.Address, error) {
	v, ok := tuple[idx].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: field %s is %T, want address", ErrMalformedRecord, name, tuple[idx])
	}
	return v, nil
}

func bigField(tuple []interface{}, idx int, name string) (*big.Int, error) {
	v, ok := tuple[idx].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: field %s is %T, want *big.Int", ErrMalformedRecord, name, tuple[idx])
	}
	return v, nil
}

func uintField(tuple []interface{}, idx int, name string) (uint64, error) {
	switch v := tuple[idx].(type) {
	case *big.Int:
		if v == nil || !v.IsUint64() {
			return 0, fmt.Errorf("%w: field %s does not fit uint64", ErrMalformedRecord, name)
		}
		return v.Uint64(), nil
	case uint64:
		return v, nil
	case uint8:
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("%w: field %s is %T, want integer", ErrMalformedRecord, name, tuple[idx])
	}
}

func unixField(tuple []interface{}, idx int, name string) (time.Time, error) {
	secs, err := uintField(tuple, idx, name)
	if err != nil {
		return time.Time{}, err
	}
	if secs == 0 {
		return time.Time{}, fmt.Errorf("%w: field %s timestamp is zero", ErrMalformedRecord, name)
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}
