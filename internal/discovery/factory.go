package discovery

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/drmick/unichecker/internal/dex"
	"github.com/drmick/unichecker/internal/model"
)

// maxSizeHint caps the pool set pre-allocation; length comes from the chain.
const maxSizeHint = 1 << 16

// CollectPools enumerates every pair created by factory. Any failed lookup
// fails the whole discovery since the result would be incomplete.
func CollectPools(ctx context.Context, caller dex.Caller, factory common.Address, logger *zap.Logger) (model.PoolSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	length, err := dex.AllPairsLength(ctx, caller, factory)
	if err != nil {
		return nil, fmt.Errorf("pairs length: %w", err)
	}
	logger.Info("collecting factory pools", zap.String("factory", factory.Hex()), zap.Uint64("pairs", length))

	pools := make(model.PoolSet, min(length, maxSizeHint))
	for i := uint64(0); i < length; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pool, err := dex.PairAt(ctx, caller, factory, i)
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		if pools.Contains(pool) {
			logger.Warn("factory returned duplicate pair", zap.String("pool", pool.Hex()), zap.Uint64("index", i))
		}
		pools.Add(pool)
	}

	return pools, nil
}
