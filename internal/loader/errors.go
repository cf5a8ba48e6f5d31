package loader

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PoolError is a fatal failure while loading one pool.
type PoolError struct {
	Pool  common.Address
	Block uint64
	Err   error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("pool %s at block %d: %v", e.Pool.Hex(), e.Block, e.Err)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}
