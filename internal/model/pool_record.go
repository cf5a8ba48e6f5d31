package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DexPoolRecord is a point-in-time snapshot of one pair, read at BlockNum.
type DexPoolRecord struct {
	PairAddress            common.Address
	Token0Address          common.Address
	Token1Address          common.Address
	Token0Symbol           *string
	Token1Symbol           *string
	Token0Reserves         *big.Int
	Token1Reserves         *big.Int
	Token0ReserveBalanceOf *big.Int
	Token1ReserveBalanceOf *big.Int
	BlockNum               uint64
	StrangeReserves        bool
}

// PoolReading holds the raw values read for one pair at one block.
type PoolReading struct {
	Pair     common.Address
	Token0   common.Address
	Token1   common.Address
	Symbol0  *string
	Symbol1  *string
	Reserve0 *big.Int
	Reserve1 *big.Int
	Balance0 *big.Int
	Balance1 *big.Int
	Block    uint64
}

// NewDexPoolRecord builds a record and derives StrangeReserves from the
// declared reserves and measured balances.
func NewDexPoolRecord(r PoolReading) DexPoolRecord {
	record := DexPoolRecord{
		PairAddress:            r.Pair,
		Token0Address:          r.Token0,
		Token1Address:          r.Token1,
		Token0Symbol:           r.Symbol0,
		Token1Symbol:           r.Symbol1,
		Token0Reserves:         orZero(r.Reserve0),
		Token1Reserves:         orZero(r.Reserve1),
		Token0ReserveBalanceOf: orZero(r.Balance0),
		Token1ReserveBalanceOf: orZero(r.Balance1),
		BlockNum:               r.Block,
	}
	record.StrangeReserves = strangeReserves(record)
	return record
}

func strangeReserves(r DexPoolRecord) bool {
	return r.Token0Reserves.Cmp(r.Token0ReserveBalanceOf) != 0 ||
		r.Token1Reserves.Cmp(r.Token1ReserveBalanceOf) != 0
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

type dexPoolRecordJSON struct {
	PairAddress            string  `json:"pair_address"`
	Token0Address          string  `json:"token0_address"`
	Token1Address          string  `json:"token1_address"`
	Token0Symbol           *string `json:"token0_symbol"`
	Token1Symbol           *string `json:"token1_symbol"`
	Token0Reserves         string  `json:"token0_reserves"`
	Token1Reserves         string  `json:"token1_reserves"`
	Token0ReserveBalanceOf string  `json:"token0_reserve_balance_of"`
	Token1ReserveBalanceOf string  `json:"token1_reserve_balance_of"`
	BlockNum               uint64  `json:"block_num"`
	StrangeReserves        bool    `json:"strange_reserves"`
}

// MarshalJSON encodes amounts as base-10 strings so values above 2^53 survive
// JSON consumers, and addresses in checksummed hex.
func (r DexPoolRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(dexPoolRecordJSON{
		PairAddress:            r.PairAddress.Hex(),
		Token0Address:          r.Token0Address.Hex(),
		Token1Address:          r.Token1Address.Hex(),
		Token0Symbol:           r.Token0Symbol,
		Token1Symbol:           r.Token1Symbol,
		Token0Reserves:         orZero(r.Token0Reserves).String(),
		Token1Reserves:         orZero(r.Token1Reserves).String(),
		Token0ReserveBalanceOf: orZero(r.Token0ReserveBalanceOf).String(),
		Token1ReserveBalanceOf: orZero(r.Token1ReserveBalanceOf).String(),
		BlockNum:               r.BlockNum,
		StrangeReserves:        r.StrangeReserves,
	})
}

// UnmarshalJSON decodes a record. StrangeReserves is recomputed from the
// amounts rather than taken from the input.
func (r *DexPoolRecord) UnmarshalJSON(data []byte) error {
	var raw dexPoolRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	addrs := make([]common.Address, 3)
	for i, text := range []string{raw.PairAddress, raw.Token0Address, raw.Token1Address} {
		if !common.IsHexAddress(text) {
			return fmt.Errorf("invalid address %q", text)
		}
		addrs[i] = common.HexToAddress(text)
	}

	amounts := make([]*big.Int, 4)
	for i, text := range []string{raw.Token0Reserves, raw.Token1Reserves, raw.Token0ReserveBalanceOf, raw.Token1ReserveBalanceOf} {
		v, ok := new(big.Int).SetString(text, 10)
		if !ok || v.Sign() < 0 {
			return fmt.Errorf("invalid amount %q", text)
		}
		amounts[i] = v
	}

	*r = NewDexPoolRecord(PoolReading{
		Pair:     addrs[0],
		Token0:   addrs[1],
		Token1:   addrs[2],
		Symbol0:  raw.Token0Symbol,
		Symbol1:  raw.Token1Symbol,
		Reserve0: amounts[0],
		Reserve1: amounts[1],
		Balance0: amounts[2],
		Balance1: amounts[3],
		Block:    raw.BlockNum,
	})
	return nil
}
