// Package writeback owns the read layer's side of write operations. The
// service never signs transactions, wallets do, but it packs calldata
// for them and, once a transaction is confirmed, invalidates every cache
// key the write logically affected, before the confirmation call returns.
package writeback

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gatewise-lab/project-gatewise/internal/chain/ethrpc"
	"github.com/gatewise-lab/project-gatewise/internal/readmodel"
)

// Operation names one contract write. Values match the ABI method names.
type Operation string

const (
	OpCreateEvent         Operation = "createEvent"
	OpPurchaseTicket      Operation = "purchaseTicket"
	OpUpdateEventStatus   Operation = "updateEventStatus"
	OpWithdrawRevenue     Operation = "withdrawRevenue"
	OpGrantOrganizerRole  Operation = "grantOrganizerRole"
	OpRevokeOrganizerRole Operation = "revokeOrganizerRole"
	OpTransferFrom        Operation = "transferFrom"
)

var knownOps = map[Operation]struct{}{
	OpCreateEvent:         {},
	OpPurchaseTicket:      {},
	OpUpdateEventStatus:   {},
	OpWithdrawRevenue:     {},
	OpGrantOrganizerRole:  {},
	OpRevokeOrganizerRole: {},
	OpTransferFrom:        {},
}

// ParseOperation validates an operation name from the API.
func ParseOperation(name string) (Operation, error) {
	op := Operation(name)
	if _, ok := knownOps[op]; !ok {
		return "", fmt.Errorf("unknown write operation %q", name)
	}
	return op, nil
}

// Confirmation reports one confirmed write and the actors it touched.
// Addresses the caller does not know may be nil; the matching
// invalidations are skipped.
type Confirmation struct {
	Op        Operation
	ChainID   uint64
	Organizer *common.Address
	Buyer     *common.Address
	From      *common.Address
	To        *common.Address
}

// Coordinator packs calldata and applies post-confirmation invalidation
// to the read-model store.
type Coordinator struct {
	store *readmodel.Store
}

// NewCoordinator wires the coordinator to the read-model store.
func NewCoordinator(store *readmodel.Store) *Coordinator {
	return &Coordinator{store: store}
}

// Calldata packs the ABI calldata for a write so a wallet can sign it.
func (c *Coordinator) Calldata(op Operation, args ...interface{}) ([]byte, error) {
	if _, ok := knownOps[op]; !ok {
		return nil, fmt.Errorf("unknown write operation %q", op)
	}
	contractABI, err := ethrpc.ContractABI()
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack(string(op), args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", op, err)
	}
	return data, nil
}

// Confirm invalidates the cache keys affected by a confirmed write.
// The cache has no chain-driven invalidation; this call is the only
// freshness trigger between TTL expiries.
func (c *Coordinator) Confirm(conf Confirmation) error {
	if _, ok := knownOps[conf.Op]; !ok {
		return fmt.Errorf("unknown write operation %q", conf.Op)
	}

	switch conf.Op {
	case OpCreateEvent, OpUpdateEventStatus, OpWithdrawRevenue:
		c.store.InvalidateAllEvents(conf.ChainID)
		if conf.Organizer != nil {
			c.store.InvalidateOrganizer(conf.ChainID, *conf.Organizer)
		}

	case OpPurchaseTicket:
		// Supply and revenue moved: every event listing is affected,
		// plus the buyer's ticket wallet.
		c.store.InvalidateAllEvents(conf.ChainID)
		if conf.Organizer != nil {
			c.store.InvalidateOrganizer(conf.ChainID, *conf.Organizer)
		}
		if conf.Buyer != nil {
			c.store.InvalidateOwnerTickets(conf.ChainID, *conf.Buyer)
		}

	case OpGrantOrganizerRole, OpRevokeOrganizerRole:
		if conf.Organizer != nil {
			c.store.InvalidateOrganizer(conf.ChainID, *conf.Organizer)
		}

	case OpTransferFrom:
		if conf.From != nil {
			c.store.InvalidateOwnerTickets(conf.ChainID, *conf.From)
		}
		if conf.To != nil {
			c.store.InvalidateOwnerTickets(conf.ChainID, *conf.To)
		}
	}
	return nil
}
