package scanner

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/drmick/unichecker/internal/model"
)

// LogFilterer is the log query surface of the chain client.
type LogFilterer interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Config holds the scan range and paging settings.
type Config struct {
	FromBlock  uint64
	ToBlock    uint64
	WindowSize uint64
	SwapTopic  common.Hash
}

// Scanner finds pools that emitted swap logs within a block range.
type Scanner struct {
	cfg    Config
	chain  LogFilterer
	logger *zap.Logger
}

// NewScanner builds a Scanner with its dependencies.
func NewScanner(cfg Config, chain LogFilterer, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cfg: cfg, chain: chain, logger: logger}
}

// ActivePools returns the subset of pools with at least one swap log in
// [FromBlock, ToBlock]. Logs are filtered by topic on the node and by address
// locally; address filters on eth_getLogs do not hold up for large pool sets.
// Any failed window aborts the scan.
func (s *Scanner) ActivePools(ctx context.Context, pools model.PoolSet) (model.PoolSet, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}

	windows, err := SplitRange(s.cfg.FromBlock, s.cfg.ToBlock, s.cfg.WindowSize)
	if err != nil {
		return nil, err
	}

	active := make(model.PoolSet)
	topics := []common.Hash{s.cfg.SwapTopic}
	for _, window := range windows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		s.logger.Debug("scan swaps", zap.Uint64("from", window.From), zap.Uint64("to", window.To))

		logs, err := s.chain.FilterLogs(ctx, window.From, window.To, nil, topics)
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", window.From, window.To, err)
		}

		matched := 0
		for _, log := range logs {
			if log.Removed || len(log.Topics) == 0 || log.Topics[0] != s.cfg.SwapTopic {
				continue
			}
			if !pools.Contains(log.Address) {
				continue
			}
			matched++
			active.Add(log.Address)
		}

		s.logger.Debug("window scanned",
			zap.Uint64("from", window.From),
			zap.Uint64("to", window.To),
			zap.Int("logs", len(logs)),
			zap.Int("matched", matched),
			zap.Int("active", len(active)),
		)
	}

	s.logger.Info("swap scan complete",
		zap.Uint64("from", s.cfg.FromBlock),
		zap.Uint64("to", s.cfg.ToBlock),
		zap.Int("windows", len(windows)),
		zap.Int("active", len(active)),
	)

	return active, nil
}
