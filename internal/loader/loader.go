package loader

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/drmick/unichecker/internal/cache"
	"github.com/drmick/unichecker/internal/dex"
	"github.com/drmick/unichecker/internal/model"
)

const progressEvery = 100

// Config holds loader settings.
type Config struct {
	// FallbackBlock is used for pools without an entry in CheckingBlocks.
	FallbackBlock  uint64
	CheckingBlocks map[common.Address]uint64
	Workers        int
	// SkipFailedPools drops pools that hit a fatal error instead of
	// aborting the run.
	SkipFailedPools bool
}

// Loader reads tokens, reserves, symbols and balances for active pools.
type Loader struct {
	cfg     Config
	chain   dex.Caller
	symbols *cache.SymbolCache
	logger  *zap.Logger
}

// NewLoader builds a Loader. The symbol cache is owned by the caller and may
// be shared across Load calls within one run.
func NewLoader(cfg Config, chain dex.Caller, symbols *cache.SymbolCache, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if symbols == nil {
		symbols = cache.NewSymbolCache(false)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Loader{cfg: cfg, chain: chain, symbols: symbols, logger: logger}
}

// CheckingBlock returns the block a pool is read at.
func (l *Loader) CheckingBlock(pool common.Address) uint64 {
	if block, ok := l.cfg.CheckingBlocks[pool]; ok {
		return block
	}
	return l.cfg.FallbackBlock
}

// Load produces one record per pool, ordered by pool address. The first
// fatal error cancels outstanding pools and is returned unless
// SkipFailedPools is set.
func (l *Loader) Load(ctx context.Context, pools model.PoolSet) ([]model.DexPoolRecord, error) {
	if l.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}

	addresses := pools.Sorted()
	total := len(addresses)
	if total == 0 {
		return []model.DexPoolRecord{}, nil
	}

	records := make([]model.DexPoolRecord, total)
	loaded := make([]bool, total)
	var processed, skipped atomic.Int64

	workers := pond.NewPool(l.cfg.Workers, pond.WithQueueSize(total))
	defer workers.StopAndWait()

	group := workers.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, addr := range addresses {
		i, addr := i, addr
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			record, err := l.LoadPool(groupCtx, addr)
			if err != nil {
				if l.cfg.SkipFailedPools && !errors.Is(err, context.Canceled) {
					skipped.Add(1)
					l.logger.Error("pool skipped", zap.String("pool", addr.Hex()), zap.Error(err))
					return nil
				}
				return err
			}
			records[i] = record
			loaded[i] = true

			if n := processed.Add(1); n%progressEvery == 0 {
				l.logger.Info("pools processed", zap.Int64("processed", n), zap.Int64("remaining", int64(total)-n))
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.DexPoolRecord, 0, total)
	for i, ok := range loaded {
		if ok {
			out = append(out, records[i])
		}
	}

	l.logger.Info("pool data loaded",
		zap.Int("records", len(out)),
		zap.Int64("skipped", skipped.Load()),
		zap.Int("symbols_cached", l.symbols.Len()),
		zap.Uint64("symbol_hits", l.symbols.Hits()),
		zap.Uint64("symbol_misses", l.symbols.Misses()),
	)

	return out, nil
}

// LoadPool reads one pool at its checking block. Calls run in a fixed order:
// tokens, reserves, symbols, balances.
func (l *Loader) LoadPool(ctx context.Context, pool common.Address) (model.DexPoolRecord, error) {
	block := l.CheckingBlock(pool)
	blockNum := new(big.Int).SetUint64(block)

	fail := func(err error) (model.DexPoolRecord, error) {
		l.logger.Error("contract error", zap.String("pool", pool.Hex()), zap.Uint64("block", block), zap.Error(err))
		return model.DexPoolRecord{}, &PoolError{Pool: pool, Block: block, Err: err}
	}

	token0, token1, err := dex.PairTokens(ctx, l.chain, pool, blockNum)
	if err != nil {
		return fail(fmt.Errorf("tokens: %w", err))
	}

	reserve0, reserve1, err := dex.PairReserves(ctx, l.chain, pool, blockNum)
	if err != nil {
		return fail(fmt.Errorf("reserves: %w", err))
	}

	symbol0, err := l.tokenSymbol(ctx, token0, block)
	if err != nil {
		return fail(fmt.Errorf("token0 symbol: %w", err))
	}
	symbol1, err := l.tokenSymbol(ctx, token1, block)
	if err != nil {
		return fail(fmt.Errorf("token1 symbol: %w", err))
	}

	balance0, err := l.tokenBalance(ctx, token0, pool, block)
	if err != nil {
		return fail(fmt.Errorf("token0 balance: %w", err))
	}
	balance1, err := l.tokenBalance(ctx, token1, pool, block)
	if err != nil {
		return fail(fmt.Errorf("token1 balance: %w", err))
	}

	record := model.NewDexPoolRecord(model.PoolReading{
		Pair:     pool,
		Token0:   token0,
		Token1:   token1,
		Symbol0:  symbol0,
		Symbol1:  symbol1,
		Reserve0: reserve0,
		Reserve1: reserve1,
		Balance0: balance0,
		Balance1: balance1,
		Block:    block,
	})

	if record.StrangeReserves {
		l.logger.Warn("strange reserves",
			zap.String("pool", pool.Hex()),
			zap.Uint64("block", block),
			zap.String("reserve0", record.Token0Reserves.String()),
			zap.String("balance0", record.Token0ReserveBalanceOf.String()),
			zap.String("reserve1", record.Token1Reserves.String()),
			zap.String("balance1", record.Token1ReserveBalanceOf.String()),
		)
	}

	return record, nil
}

func (l *Loader) tokenSymbol(ctx context.Context, token common.Address, block uint64) (*string, error) {
	key := cache.SymbolKey{Block: block, Token: token}
	return l.symbols.Resolve(ctx, key, func(ctx context.Context) (string, bool, error) {
		symbol, err := dex.TokenSymbol(ctx, l.chain, token, new(big.Int).SetUint64(block))
		if err != nil {
			if dex.Classify(err) == dex.Recoverable {
				l.logger.Warn("token symbol unavailable", zap.String("token", token.Hex()), zap.Uint64("block", block), zap.Error(err))
				return "", false, nil
			}
			return "", false, err
		}
		return symbol, true, nil
	})
}

func (l *Loader) tokenBalance(ctx context.Context, token, owner common.Address, block uint64) (*big.Int, error) {
	balance, err := dex.TokenBalanceOf(ctx, l.chain, token, owner, new(big.Int).SetUint64(block))
	if err != nil {
		if dex.Classify(err) == dex.Recoverable {
			l.logger.Warn("token balance unavailable",
				zap.String("token", token.Hex()),
				zap.String("owner", owner.Hex()),
				zap.Uint64("block", block),
				zap.Error(err),
			)
			return new(big.Int), nil
		}
		return nil, err
	}
	return balance, nil
}
