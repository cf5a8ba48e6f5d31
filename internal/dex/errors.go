package dex

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrNoContractMethod signals that the target account does not answer the
// requested method: it has no code at the block, or its code rejects the
// selector without revert data.
var ErrNoContractMethod = errors.New("contract does not expose method")

// ErrorClass separates contract failures that can be absorbed from ones that
// must stop processing.
type ErrorClass int

const (
	Fatal ErrorClass = iota
	Recoverable
)

func (c ErrorClass) String() string {
	switch c {
	case Recoverable:
		return "recoverable"
	default:
		return "fatal"
	}
}

// ContractError records a failed contract method call.
type ContractError struct {
	Contract common.Address
	Method   string
	Block    *big.Int
	Err      error
}

func (e *ContractError) Error() string {
	block := "latest"
	if e.Block != nil {
		block = e.Block.String()
	}
	return fmt.Sprintf("call %s on %s at block %s: %v", e.Method, e.Contract.Hex(), block, e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// Classify decides whether a token contract call failure is recoverable.
// Only the method-not-found class is; everything else (transport, malformed
// or undecodable responses) is fatal.
func Classify(err error) ErrorClass {
	if err != nil && errors.Is(err, ErrNoContractMethod) {
		return Recoverable
	}
	return Fatal
}

// isBareRevert reports a revert that carries no revert data, which is what a
// contract without a matching selector or fallback produces.
func isBareRevert(err error) bool {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "execution reverted") {
		return false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		switch data := dataErr.ErrorData().(type) {
		case nil:
			return true
		case string:
			return data == "" || data == "0x"
		default:
			return false
		}
	}
	return strings.TrimSpace(msg) == "execution reverted"
}
