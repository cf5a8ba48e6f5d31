package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callResult struct {
	data []byte
	err  error
}

// fakeCaller answers eth_calls by contract and 4-byte selector.
type fakeCaller struct {
	results map[common.Address]map[[4]byte]callResult
	blocks  []*big.Int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{results: make(map[common.Address]map[[4]byte]callResult)}
}

func (f *fakeCaller) set(contract common.Address, selector []byte, data []byte, err error) {
	if f.results[contract] == nil {
		f.results[contract] = make(map[[4]byte]callResult)
	}
	var key [4]byte
	copy(key[:], selector)
	f.results[contract][key] = callResult{data: data, err: err}
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.blocks = append(f.blocks, block)
	var key [4]byte
	copy(key[:], msg.Data)
	res, ok := f.results[*msg.To][key]
	if !ok {
		return nil, nil
	}
	return res.data, res.err
}

type revertError struct {
	msg  string
	data interface{}
}

func (e revertError) Error() string          { return e.msg }
func (e revertError) ErrorCode() int         { return 3 }
func (e revertError) ErrorData() interface{} { return e.data }

func TestPairReservesDropsTimestamp(t *testing.T) {
	parsed, err := PairABI()
	require.NoError(t, err)

	pair := common.HexToAddress("0x1111111111111111111111111111111111111111")
	out, err := parsed.Methods["getReserves"].Outputs.Pack(big.NewInt(1000), big.NewInt(2000), uint32(1700000000))
	require.NoError(t, err)

	caller := newFakeCaller()
	caller.set(pair, parsed.Methods["getReserves"].ID, out, nil)

	r0, r1, err := PairReserves(context.Background(), caller, pair, big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, "1000", r0.String())
	assert.Equal(t, "2000", r1.String())
	require.Len(t, caller.blocks, 1)
	assert.Equal(t, int64(42), caller.blocks[0].Int64())
}

func TestTokenSymbolStringAndBytes32(t *testing.T) {
	stringABI, err := ERC20ABI()
	require.NoError(t, err)
	selector := stringABI.Methods["symbol"].ID

	modern := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	legacy := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	modernOut, err := stringABI.Methods["symbol"].Outputs.Pack("WETH")
	require.NoError(t, err)
	var legacyOut [32]byte
	copy(legacyOut[:], "MKR")

	caller := newFakeCaller()
	caller.set(modern, selector, modernOut, nil)
	caller.set(legacy, selector, legacyOut[:], nil)

	symbol, err := TokenSymbol(context.Background(), caller, modern, nil)
	require.NoError(t, err)
	assert.Equal(t, "WETH", symbol)

	symbol, err = TokenSymbol(context.Background(), caller, legacy, nil)
	require.NoError(t, err)
	assert.Equal(t, "MKR", symbol)
}

func TestClassify(t *testing.T) {
	stringABI, err := ERC20ABI()
	require.NoError(t, err)
	selector := stringABI.Methods["balanceOf"].ID
	owner := common.HexToAddress("0x9999999999999999999999999999999999999999")

	cases := []struct {
		name string
		data []byte
		err  error
		want ErrorClass
	}{
		{name: "no code", want: Recoverable},
		{name: "bare revert", err: revertError{msg: "execution reverted"}, want: Recoverable},
		{name: "bare revert 0x data", err: revertError{msg: "execution reverted", data: "0x"}, want: Recoverable},
		{name: "revert with reason", err: revertError{msg: "execution reverted: paused", data: "0x08c379a0"}, want: Fatal},
		{name: "network", err: errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"), want: Fatal},
		{name: "malformed", data: []byte{0x01, 0x02}, want: Fatal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
			caller := newFakeCaller()
			if tc.data != nil || tc.err != nil {
				caller.set(token, selector, tc.data, tc.err)
			}

			_, err := TokenBalanceOf(context.Background(), caller, token, owner, big.NewInt(7))
			require.Error(t, err)
			assert.Equal(t, tc.want, Classify(err))

			var contractErr *ContractError
			require.ErrorAs(t, err, &contractErr)
			assert.Equal(t, "balanceOf", contractErr.Method)
			assert.Equal(t, token, contractErr.Contract)
		})
	}
}

func TestClassifyWrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("pool 0x1"), &ContractError{Method: "symbol", Err: ErrNoContractMethod})
	assert.Equal(t, Recoverable, Classify(wrapped))
	assert.Equal(t, Fatal, Classify(nil))
	assert.Equal(t, "recoverable", Recoverable.String())
	assert.Equal(t, "fatal", Fatal.String())
}

func TestFactoryCalls(t *testing.T) {
	parsed, err := FactoryABI()
	require.NoError(t, err)

	factory := common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	pair := common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281EC28c9Dc")

	lengthOut, err := parsed.Methods["allPairsLength"].Outputs.Pack(big.NewInt(3))
	require.NoError(t, err)
	pairOut, err := parsed.Methods["allPairs"].Outputs.Pack(pair)
	require.NoError(t, err)

	caller := newFakeCaller()
	caller.set(factory, parsed.Methods["allPairsLength"].ID, lengthOut, nil)
	caller.set(factory, parsed.Methods["allPairs"].ID, pairOut, nil)

	length, err := AllPairsLength(context.Background(), caller, factory)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), length)

	got, err := PairAt(context.Background(), caller, factory, 2)
	require.NoError(t, err)
	assert.Equal(t, pair, got)
}

func TestSwapTopic(t *testing.T) {
	topic, err := SwapTopic()
	require.NoError(t, err)
	assert.Equal(t, "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822", topic.Hex())
}
