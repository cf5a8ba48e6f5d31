package postgres

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drmick/unichecker/internal/model"
)

func TestSnapshotArgs(t *testing.T) {
	symbol := "USDC"
	huge, ok := new(big.Int).SetString("79228162514264337593543950336", 10)
	require.True(t, ok)

	record := model.NewDexPoolRecord(model.PoolReading{
		Pair:     common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281EC28c9Dc"),
		Token0:   common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9eb0ce3606eb48"),
		Token1:   common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Symbol0:  &symbol,
		Reserve0: huge,
		Reserve1: big.NewInt(2),
		Balance0: huge,
		Balance1: big.NewInt(3),
		Block:    19000000,
	})

	args := snapshotArgs(record)
	require.Len(t, args, 11)
	assert.Equal(t, "0xB4e16d0168e52d35CaCD2c6185b44281EC28c9Dc", args[0])
	assert.Equal(t, int64(19000000), args[1])
	assert.Equal(t, &symbol, args[4])
	assert.Nil(t, args[5])
	assert.Equal(t, huge.String(), args[6])
	assert.Equal(t, true, args[10])
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "", 10)
	assert.Error(t, err)
}
