package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gatewise-lab/project-gatewise/internal/core/record"
)

// ErrNoSnapshot is returned when a retrieval finds no archived rows for
// the requested scope.
var ErrNoSnapshot = errors.New("no snapshot archived")

// SnapshotStore persists point-in-time copies of fetched chain state.
// The archive is a convenience mirror, never the source of truth: rows
// are upserted on every successful fetch and read back only for
// offline inspection and cold-start diagnostics.
type SnapshotStore interface {
	ArchiveEvents(ctx context.Context, chainID uint64, events []record.EventRecord) error
	ArchiveTickets(ctx context.Context, chainID uint64, tickets []record.TicketRecord) error

	// RetrieveEventSnapshots returns the most recently archived events for
	// a chain, ordered by event id.
	RetrieveEventSnapshots(ctx context.Context, chainID uint64, limit int) ([]record.EventRecord, error)

	// RetrieveTicketSnapshots returns the archived tickets last seen owned
	// by the given address, ordered by token id.
	RetrieveTicketSnapshots(ctx context.Context, chainID uint64, owner common.Address, limit int) ([]record.TicketRecord, error)

	Close() error
}
