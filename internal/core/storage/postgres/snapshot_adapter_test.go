package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/gatewise-lab/project-gatewise/internal/core/record"
	"github.com/gatewise-lab/project-gatewise/internal/core/storage"
)

var (
	testOrganizer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testOwner     = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestAdapter_ArchiveEvents(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	ev := record.EventRecord{
		EventID:       7,
		Name:          "Summer Jam",
		Description:   "Outdoor concert",
		Date:          now.Add(72 * time.Hour),
		Venue:         "Riverside Park",
		TicketPrice:   big.NewInt(50000000000000000),
		MaxSupply:     100,
		CurrentSupply: 40,
		Organizer:     testOrganizer,
		Status:        record.StatusActive,
		CreatedAt:     now.Add(-24 * time.Hour),
		Stats: record.NewEventStats(
			big.NewInt(2000000000000000000), big.NewInt(1500000000000000000), 40, 100),
	}

	tests := []struct {
		name       string
		mockResult func(mock sqlmock.Sqlmock)
		assertions func(t *testing.T, err error)
	}{
		{
			name: "success commits batch",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectPrepare(regexp.QuoteMeta(queryUpsertEventSnapshot)).WillBeClosed()
				mock.ExpectExec(regexp.QuoteMeta(queryUpsertEventSnapshot)).
					WithArgs(
						uint64(84532),
						ev.EventID,
						ev.Name,
						ev.Description,
						ev.Date,
						ev.Venue,
						"50000000000000000",
						ev.MaxSupply,
						ev.CurrentSupply,
						"0x1111111111111111111111111111111111111111",
						uint8(record.StatusActive),
						ev.CreatedAt,
						"2000000000000000000",
						"1500000000000000000",
						uint64(40),
						sqlmock.AnyArg(),
					).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			assertions: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "exec failure rolls back",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectPrepare(regexp.QuoteMeta(queryUpsertEventSnapshot)).WillBeClosed()
				mock.ExpectExec(regexp.QuoteMeta(queryUpsertEventSnapshot)).
					WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
			assertions: func(t *testing.T, err error) {
				require.Error(t, err)
				require.ErrorContains(t, err, "upsert event 7")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			tc.mockResult(mock)

			err := adapter.ArchiveEvents(context.Background(), 84532, []record.EventRecord{ev})
			tc.assertions(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_ArchiveEventsEmptyBatchIsNoop(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	require.NoError(t, adapter.ArchiveEvents(context.Background(), 84532, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ArchiveTickets(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	ticket := record.TicketRecord{
		TokenID:       301,
		EventID:       7,
		TicketNumber:  41,
		PurchasePrice: big.NewInt(50000000000000000),
		PurchaseDate:  now.Add(-time.Hour),
		OriginalBuyer: testOwner,
		CurrentOwner:  testOwner,
		EventName:     "Summer Jam",
		EventDate:     now.Add(72 * time.Hour),
		EventVenue:    "Riverside Park",
	}

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(queryUpsertTicketSnapshot)).WillBeClosed()
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertTicketSnapshot)).
		WithArgs(
			uint64(84532),
			ticket.TokenID,
			ticket.EventID,
			ticket.TicketNumber,
			"50000000000000000",
			ticket.PurchaseDate,
			"0x2222222222222222222222222222222222222222",
			"0x2222222222222222222222222222222222222222",
			ticket.EventName,
			ticket.EventDate,
			ticket.EventVenue,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := adapter.ArchiveTickets(context.Background(), 84532, []record.TicketRecord{ticket})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_RetrieveEventSnapshots(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	eventDate := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	createdAt := eventDate.Add(-30 * 24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(queryRetrieveEventSnapshots)).
		WithArgs(uint64(84532), 10).
		WillReturnRows(sqlmock.NewRows(eventSnapshotColumns()).
			AddRow(
				uint64(7),
				"Summer Jam",
				"Outdoor concert",
				eventDate,
				"Riverside Park",
				"50000000000000000",
				uint64(100),
				uint64(40),
				"0x1111111111111111111111111111111111111111",
				0,
				createdAt,
				"2000000000000000000",
				"1500000000000000000",
				uint64(40),
			),
		).RowsWillBeClosed()

	events, err := adapter.RetrieveEventSnapshots(context.Background(), 84532, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, uint64(7), events[0].EventID)
	require.Equal(t, record.StatusActive, events[0].Status)
	require.Equal(t, testOrganizer, events[0].Organizer)
	require.Equal(t, "50000000000000000", events[0].TicketPrice.String())
	require.Equal(t, "500000000000000000", events[0].Stats.WithdrawnRevenue.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_RetrieveEventSnapshotsEmpty(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryRetrieveEventSnapshots)).
		WithArgs(uint64(84532), 10).
		WillReturnRows(sqlmock.NewRows(eventSnapshotColumns())).
		RowsWillBeClosed()

	_, err := adapter.RetrieveEventSnapshots(context.Background(), 84532, 10)
	require.ErrorIs(t, err, storage.ErrNoSnapshot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_RetrieveTicketSnapshots(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	purchaseDate := time.Date(2026, 8, 19, 11, 0, 0, 0, time.UTC)
	eventDate := purchaseDate.Add(96 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(queryRetrieveTicketSnapshots)).
		WithArgs(uint64(84532), "0x2222222222222222222222222222222222222222", 50).
		WillReturnRows(sqlmock.NewRows(ticketSnapshotColumns()).
			AddRow(
				uint64(301),
				uint64(7),
				uint64(41),
				"50000000000000000",
				purchaseDate,
				"0x3333333333333333333333333333333333333333",
				"0x2222222222222222222222222222222222222222",
				"Summer Jam",
				eventDate,
				"Riverside Park",
			),
		).RowsWillBeClosed()

	tickets, err := adapter.RetrieveTicketSnapshots(context.Background(), 84532, testOwner, 50)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.Equal(t, uint64(301), tickets[0].TokenID)
	require.Equal(t, testOwner, tickets[0].CurrentOwner)
	require.True(t, tickets[0].Transferred())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CloseReturnsDBCloseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dbCloseErr := errors.New("db close failed")

	mock.ExpectPrepare(regexp.QuoteMeta(queryRetrieveEventSnapshots)).WillBeClosed()
	stmtRetrieveEvents, err := db.Prepare(queryRetrieveEventSnapshots)
	require.NoError(t, err)

	mock.ExpectPrepare(regexp.QuoteMeta(queryRetrieveTicketSnapshots)).WillBeClosed()
	stmtRetrieveTickets, err := db.Prepare(queryRetrieveTicketSnapshots)
	require.NoError(t, err)

	mock.ExpectClose().WillReturnError(dbCloseErr)

	adapter := &Adapter{
		db:                  db,
		stmtRetrieveEvents:  stmtRetrieveEvents,
		stmtRetrieveTickets: stmtRetrieveTickets,
		nowFn:               time.Now,
	}

	err = adapter.Close()
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to close database")
	require.ErrorIs(t, err, dbCloseErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:                  db,
		stmtRetrieveEvents:  mustPrepareStmt(t, db, mock, queryRetrieveEventSnapshots),
		stmtRetrieveTickets: mustPrepareStmt(t, db, mock, queryRetrieveTicketSnapshots),
		nowFn:               time.Now,
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func eventSnapshotColumns() []string {
	return []string{
		"event_id",
		"name",
		"description",
		"event_date",
		"venue",
		"ticket_price_wei",
		"max_supply",
		"current_supply",
		"organizer",
		"status",
		"created_at",
		"total_revenue_wei",
		"available_revenue_wei",
		"tickets_sold",
	}
}

func ticketSnapshotColumns() []string {
	return []string{
		"token_id",
		"event_id",
		"ticket_number",
		"purchase_price_wei",
		"purchase_date",
		"original_buyer",
		"current_owner",
		"event_name",
		"event_date",
		"event_venue",
	}
}
