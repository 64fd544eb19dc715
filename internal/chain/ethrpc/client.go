// Package ethrpc implements chain.Client on top of go-ethereum's ethclient.
package ethrpc

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/gatewise-lab/project-gatewise/internal/chain"
)

const dialProbeTimeout = 10 * time.Second

var (
	parsedABIOnce sync.Once
	parsedABI     abi.ABI
	parsedABIErr  error
)

// ContractABI returns the parsed ticketing contract ABI.
// The ABI string is a compile-time constant; parse failure is a programming
// error surfaced on first use.
func ContractABI() (abi.ABI, error) {
	parsedABIOnce.Do(func() {
		parsedABI, parsedABIErr = abi.JSON(strings.NewReader(ticketingABI))
	})
	return parsedABI, parsedABIErr
}

// Client is a chain.Client bound to one RPC endpoint and one deployed
// ticketing contract.
type Client struct {
	chainID  uint64
	contract common.Address
	eth      *ethclient.Client
	abi      abi.ABI
}

// Dial connects to the RPC endpoint and verifies the contract is deployed.
// A missing contract is a configuration error, reported as
// chain.ErrContractNotDeployed so callers skip retry.
func Dial(ctx context.Context, chainID uint64, rpcURL string, contract common.Address) (*Client, error) {
	contractABI, err := ContractABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, dialProbeTimeout)
	defer cancel()

	code, err := eth.CodeAt(probeCtx, contract, nil)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("probe contract code on chain %d: %w", chainID, err)
	}
	if len(code) == 0 {
		eth.Close()
		return nil, fmt.Errorf("chain %d address %s: %w", chainID, contract.Hex(), chain.ErrContractNotDeployed)
	}

	slog.Info("[Chain] Client connected",
		"chain_id", chainID,
		"contract", contract.Hex(),
	)

	return &Client{
		chainID:  chainID,
		contract: contract,
		eth:      eth,
		abi:      contractABI,
	}, nil
}

func (c *Client) ChainID() uint64 {
	return c.chainID
}

// Call packs, executes and unpacks one constant contract function.
func (c *Client) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		if strings.Contains(err.Error(), "execution reverted") {
			return nil, fmt.Errorf("%s: %w: %v", method, chain.ErrExecutionReverted, err)
		}
		return nil, fmt.Errorf("call %s on chain %d: %w", method, c.chainID, err)
	}

	tuple, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s result: %w", method, err)
	}
	return tuple, nil
}

// FilterLogs queries logs for one event signature within an inclusive
// block range, with optional indexed-topic filters.
func (c *Client) FilterLogs(ctx context.Context, q chain.LogQuery) ([]types.Log, error) {
	event, ok := c.abi.Events[q.Event]
	if !ok {
		return nil, fmt.Errorf("unknown contract event %q", q.Event)
	}

	topics := [][]common.Hash{{event.ID}}
	if len(q.Topics) > 0 {
		indexed, err := abi.MakeTopics(q.Topics...)
		if err != nil {
			return nil, fmt.Errorf("build topic filter for %s: %w", q.Event, err)
		}
		topics = append(topics, indexed...)
	}

	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(q.FromBlock),
		ToBlock:   new(big.Int).SetUint64(q.ToBlock),
		Addresses: []common.Address{c.contract},
		Topics:    topics,
	})
	if err != nil {
		return nil, fmt.Errorf("filter %s logs [%d,%d] on chain %d: %w",
			q.Event, q.FromBlock, q.ToBlock, c.chainID, err)
	}
	return logs, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number on chain %d: %w", c.chainID, err)
	}
	return n, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
