package registry

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/gatewise-lab/project-gatewise/internal/chain"
	"github.com/gatewise-lab/project-gatewise/internal/fetcher"
)

type nullClient struct{ chainID uint64 }

func (n nullClient) ChainID() uint64 { return n.chainID }

func (n nullClient) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	return nil, nil
}

func (n nullClient) FilterLogs(ctx context.Context, q chain.LogQuery) ([]types.Log, error) {
	return nil, nil
}

func (n nullClient) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func testCfg() fetcher.Config {
	return fetcher.Config{BlockTime: time.Second}
}

func TestRegistry(t *testing.T) {
	r := New()

	require.NoError(t, r.Register(nullClient{chainID: 84532}, testCfg()))
	require.NoError(t, r.Register(nullClient{chainID: 31337}, testCfg()))

	f, err := r.ForChain(84532)
	require.NoError(t, err)
	require.Equal(t, uint64(84532), f.ChainID())

	require.Equal(t, []uint64{31337, 84532}, r.ChainIDs())
}

func TestRegistryRejectsDuplicateChain(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(nullClient{chainID: 84532}, testCfg()))
	require.Error(t, r.Register(nullClient{chainID: 84532}, testCfg()))
}

func TestRegistryUnknownChain(t *testing.T) {
	r := New()
	_, err := r.ForChain(1)
	require.ErrorIs(t, err, chain.ErrChainUnsupported)
}
