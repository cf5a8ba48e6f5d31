package discovery

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drmick/unichecker/internal/dex"
)

// fakeFactory serves allPairsLength and allPairs from a slice.
type fakeFactory struct {
	t       *testing.T
	address common.Address
	pairs   []common.Address
	failAt  int
	calls   int
	// length overrides allPairsLength when set.
	length  *big.Int
}

func (f *fakeFactory) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	parsed, err := dex.FactoryABI()
	require.NoError(f.t, err)

	method, err := parsed.MethodById(msg.Data[:4])
	require.NoError(f.t, err)

	switch method.Name {
	case "allPairsLength":
		if f.length != nil {
			return method.Outputs.Pack(f.length)
		}
		return method.Outputs.Pack(big.NewInt(int64(len(f.pairs))))
	case "allPairs":
		args, err := method.Inputs.Unpack(msg.Data[4:])
		require.NoError(f.t, err)
		index := int(args[0].(*big.Int).Int64())
		if index == f.failAt {
			return nil, errors.New("connection reset by peer")
		}
		return method.Outputs.Pack(f.pairs[index])
	}
	f.t.Fatalf("unexpected method %s", method.Name)
	return nil, nil
}

func TestCollectPools(t *testing.T) {
	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")
	factory := &fakeFactory{t: t, pairs: []common.Address{a, b, a}, failAt: -1}

	pools, err := CollectPools(context.Background(), factory, factory.address, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, pools, 2)
	assert.True(t, pools.Contains(a))
	assert.True(t, pools.Contains(b))
	assert.Equal(t, 4, factory.calls)
}

func TestCollectPoolsEmptyFactory(t *testing.T) {
	factory := &fakeFactory{t: t, failAt: -1}

	pools, err := CollectPools(context.Background(), factory, factory.address, nil)
	require.NoError(t, err)
	assert.Empty(t, pools)
	assert.Equal(t, 1, factory.calls)
}

func TestCollectPoolsFailsOnLookup(t *testing.T) {
	factory := &fakeFactory{
		t:      t,
		pairs:  []common.Address{common.HexToAddress("0x1"), common.HexToAddress("0x2")},
		failAt: 1,
	}

	pools, err := CollectPools(context.Background(), factory, factory.address, nil)
	require.Error(t, err)
	assert.Nil(t, pools)
	assert.Contains(t, err.Error(), "pair 1")
}

func TestCollectPoolsHugeLengthFailsOnFirstLookup(t *testing.T) {
	factory := &fakeFactory{
		t:      t,
		length: new(big.Int).Lsh(big.NewInt(1), 62),
		failAt: 0,
	}

	pools, err := CollectPools(context.Background(), factory, factory.address, nil)
	require.Error(t, err)
	assert.Nil(t, pools)
	assert.Contains(t, err.Error(), "pair 0")
	assert.Equal(t, 2, factory.calls)
}
