package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller performs raw eth_calls. A nil block means latest.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Call packs method with args, executes it against contract at block and
// unpacks the outputs. Failures are returned as *ContractError.
func Call(ctx context.Context, caller Caller, contract common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	resp, err := callRaw(ctx, caller, contract, parsed, method, block, args...)
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, &ContractError{Contract: contract, Method: method, Block: block, Err: fmt.Errorf("unpack: %w", err)}
	}
	return values, nil
}

func callRaw(ctx context.Context, caller Caller, contract common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]byte, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, &ContractError{Contract: contract, Method: method, Block: block, Err: fmt.Errorf("pack: %w", err)}
	}

	msg := ethereum.CallMsg{To: &contract, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		if isBareRevert(err) {
			err = fmt.Errorf("%w: %v", ErrNoContractMethod, err)
		}
		return nil, &ContractError{Contract: contract, Method: method, Block: block, Err: err}
	}
	if len(resp) == 0 {
		return nil, &ContractError{Contract: contract, Method: method, Block: block, Err: fmt.Errorf("%w: empty return data", ErrNoContractMethod)}
	}
	return resp, nil
}

// AllPairsLength returns the number of pairs the factory has created.
func AllPairsLength(ctx context.Context, caller Caller, factory common.Address) (uint64, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return 0, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := Call(ctx, caller, factory, parsed, "allPairsLength", nil)
	if err != nil {
		return 0, err
	}
	length, err := asBigInt(values[0])
	if err != nil {
		return 0, fmt.Errorf("allPairsLength: %w", err)
	}
	if !length.IsUint64() {
		return 0, fmt.Errorf("allPairsLength does not fit in uint64: %s", length)
	}
	return length.Uint64(), nil
}

// PairAt returns the pair stored at index in the factory's pair list.
func PairAt(ctx context.Context, caller Caller, factory common.Address, index uint64) (common.Address, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := Call(ctx, caller, factory, parsed, "allPairs", nil, new(big.Int).SetUint64(index))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// PairTokens returns token0 and token1 of a pair at block.
func PairTokens(ctx context.Context, caller Caller, pair common.Address, block *big.Int) (common.Address, common.Address, error) {
	parsed, err := PairABI()
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := Call(ctx, caller, pair, parsed, "token0", block)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token0: %w", err)
	}

	values, err = Call(ctx, caller, pair, parsed, "token1", block)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token1: %w", err)
	}

	return token0, token1, nil
}

// PairReserves returns the declared reserves of a pair at block. The
// blockTimestampLast output is dropped.
func PairReserves(ctx context.Context, caller Caller, pair common.Address, block *big.Int) (*big.Int, *big.Int, error) {
	parsed, err := PairABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := Call(ctx, caller, pair, parsed, "getReserves", block)
	if err != nil {
		return nil, nil, err
	}
	if len(values) < 2 {
		return nil, nil, fmt.Errorf("getReserves: expected at least 2 outputs, got %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("reserve1: %w", err)
	}
	return reserve0, reserve1, nil
}

// TokenSymbol returns the ERC20 symbol at block. Both string and legacy
// bytes32 encodings are accepted.
func TokenSymbol(ctx context.Context, caller Caller, token common.Address, block *big.Int) (string, error) {
	stringABI, err := ERC20ABI()
	if err != nil {
		return "", fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return "", fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	resp, err := callRaw(ctx, caller, token, stringABI, "symbol", block)
	if err != nil {
		return "", err
	}

	values, err := stringABI.Unpack("symbol", resp)
	if err == nil {
		if symbol, ok := values[0].(string); ok {
			return symbol, nil
		}
	}
	if len(resp) == 32 {
		if values, err := bytes32ABI.Unpack("symbol", resp); err == nil {
			if symbol, ok := bytes32ToString(values[0]); ok {
				return symbol, nil
			}
		}
	}
	if err == nil {
		err = fmt.Errorf("unexpected symbol type %T", values[0])
	}
	return "", &ContractError{Contract: token, Method: "symbol", Block: block, Err: fmt.Errorf("unpack: %w", err)}
}

// TokenBalanceOf returns the ERC20 balance of owner at block.
func TokenBalanceOf(ctx context.Context, caller Caller, token common.Address, owner common.Address, block *big.Int) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := Call(ctx, caller, token, parsed, "balanceOf", block, owner)
	if err != nil {
		return nil, err
	}
	balance, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return balance, nil
}
