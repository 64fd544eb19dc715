package v1

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/gatewise-lab/project-gatewise/internal/core/record"
)

func TestEventFromRecord(t *testing.T) {
	organizer := common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	price, _ := new(big.Int).SetString("1500000000000000000", 10) // 1.5 ether

	rec := record.EventRecord{
		EventID:       7,
		Name:          "Summer Jam",
		Venue:         "Riverside Park",
		TicketPrice:   price,
		MaxSupply:     100,
		CurrentSupply: 100,
		Organizer:     organizer,
		Status:        record.StatusActive,
		CreatedAt:     time.Unix(1786000000, 0),
		Stats:         record.NewEventStats(big.NewInt(2000), big.NewInt(500), 100, 100),
	}

	resp := EventFromRecord(&rec)
	require.Equal(t, "1500000000000000000", resp.TicketPriceWei)
	require.Equal(t, "1.5", resp.TicketPriceEth)
	require.True(t, resp.SoldOut)
	require.Equal(t, "active", resp.Status)
	require.Equal(t, organizer.Hex(), resp.Organizer)
	require.Equal(t, "2000", resp.Stats.TotalRevenueWei)
	require.Equal(t, "1500", resp.Stats.WithdrawnRevenueWei)
	require.Equal(t, "500", resp.Stats.AvailableRevenueWei)
}

func TestEventFromRecordNilAmounts(t *testing.T) {
	resp := EventFromRecord(&record.EventRecord{EventID: 1})
	require.Equal(t, "0", resp.TicketPriceWei)
	require.Equal(t, "0", resp.TicketPriceEth)
	require.Equal(t, "0", resp.Stats.TotalRevenueWei)
}

func TestTicketFromRecord(t *testing.T) {
	buyer := common.HexToAddress("0xbbbb000000000000000000000000000000000002")
	owner := common.HexToAddress("0xcccc000000000000000000000000000000000003")

	rec := record.TicketRecord{
		TokenID:       42,
		EventID:       7,
		TicketNumber:  3,
		PurchasePrice: big.NewInt(1000),
		OriginalBuyer: buyer,
		CurrentOwner:  owner,
		EventName:     "Summer Jam",
		EventStatus:   record.StatusCompleted,
	}

	resp := TicketFromRecord(&rec)
	require.Equal(t, uint64(42), resp.TokenID)
	require.True(t, resp.IsTransferred)
	require.Equal(t, "Summer Jam", resp.EventName)
	require.Equal(t, "completed", resp.EventStatus)
}

func TestCollectionsPreserveOrder(t *testing.T) {
	events := EventsFromRecords([]record.EventRecord{{EventID: 2}, {EventID: 1}})
	require.Equal(t, uint64(2), events[0].EventID)
	require.Equal(t, uint64(1), events[1].EventID)

	tickets := TicketsFromRecords(nil)
	require.Empty(t, tickets)
}
