// Package chain defines the read-side boundary to one blockchain network.
// Implementations handle connection management and typed decode; retry and
// caching policy live above this interface.
package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/core/types"
)

// Setup errors. These are fatal for the whole operation and must propagate
// without retry: no amount of backoff deploys a contract.
var (
	// ErrChainUnsupported is returned when no client is configured for
	// the requested chain id.
	ErrChainUnsupported = errors.New("chain not supported")

	// ErrContractNotDeployed is returned when the configured contract
	// address has no code on chain.
	ErrContractNotDeployed = errors.New("contract not deployed on this chain")

	// ErrExecutionReverted marks a contract call that reverted.
	ErrExecutionReverted = errors.New("contract call reverted")
)

// Client is the JSON-RPC read/decode surface the fetcher consumes.
type Client interface {
	// ChainID returns the chain this client is bound to.
	ChainID() uint64

	// Call invokes a constant contract function and returns the decoded
	// output tuple. A revert is reported as ErrExecutionReverted.
	Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)

	// FilterLogs queries logs for the bound contract within an inclusive
	// block range, restricted to one event signature and optional indexed
	// topic filters.
	FilterLogs(ctx context.Context, q LogQuery) ([]types.Log, error)

	// BlockNumber returns the current head block number.
	BlockNumber(ctx context.Context) (uint64, error)
}

// LogQuery describes one bounded log scan.
type LogQuery struct {
	Event     string // ABI event name, e.g. "TicketPurchased"
	FromBlock uint64
	ToBlock   uint64
	// Topics are indexed-argument filters positioned after the event
	// signature topic; nil entries match anything.
	Topics [][]interface{}
}
