package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drmick/unichecker/internal/chain"
	"github.com/drmick/unichecker/internal/config"
	"github.com/drmick/unichecker/internal/dex"
	"github.com/drmick/unichecker/internal/discovery"
	"github.com/drmick/unichecker/internal/model"
	"github.com/drmick/unichecker/internal/scanner"
	"github.com/drmick/unichecker/internal/storage"
)

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	listOut, _ := cmd.Flags().GetString("list-out")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := dial(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	pools, err := allPools(ctx, cfg, chainClient, logger)
	if err != nil {
		return err
	}

	if err := storage.WritePoolList(listOut, pools); err != nil {
		return err
	}
	logger.Info("pool list written", zap.String("out", listOut), zap.Int("pools", len(pools)))
	return nil
}

func runActive(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	listOut, _ := cmd.Flags().GetString("list-out")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := dial(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	toBlock, err := resolveToBlock(ctx, cfg, chainClient, logger)
	if err != nil {
		return err
	}

	cfg.PoolsFile = ""
	active, err := activePools(ctx, cfg, chainClient, toBlock, logger)
	if err != nil {
		return err
	}

	if err := storage.WritePoolList(listOut, active); err != nil {
		return err
	}
	logger.Info("active pool list written", zap.String("out", listOut), zap.Int("pools", len(active)))
	return nil
}

func allPools(ctx context.Context, cfg config.Config, chainClient *chain.Client, logger *zap.Logger) (model.PoolSet, error) {
	if cfg.Factory == "" {
		return nil, fmt.Errorf("factory address is required")
	}
	factory, err := config.ParseAddress(cfg.Factory)
	if err != nil {
		return nil, err
	}

	pools, err := discovery.CollectPools(ctx, chainClient, factory, logger)
	if err != nil {
		return nil, fmt.Errorf("discover pools: %w", err)
	}
	logger.Info("factory pools collected", zap.String("factory", factory.Hex()), zap.Int("pools", len(pools)))
	return pools, nil
}

// activePools returns pools with swaps in [cfg.FromBlock, toBlock], or the
// pools listed in cfg.PoolsFile when set.
func activePools(ctx context.Context, cfg config.Config, chainClient *chain.Client, toBlock uint64, logger *zap.Logger) (model.PoolSet, error) {
	if cfg.PoolsFile != "" {
		pools, err := storage.ReadPoolList(cfg.PoolsFile)
		if err != nil {
			return nil, err
		}
		logger.Info("active pools loaded from file", zap.String("path", cfg.PoolsFile), zap.Int("pools", len(pools)))
		return pools, nil
	}

	topic, err := swapTopic(cfg.SwapTopic0)
	if err != nil {
		return nil, err
	}

	pools, err := allPools(ctx, cfg, chainClient, logger)
	if err != nil {
		return nil, err
	}

	swapScanner := scanner.NewScanner(scanner.Config{
		FromBlock:  cfg.FromBlock,
		ToBlock:    toBlock,
		WindowSize: cfg.Window,
		SwapTopic:  topic,
	}, chainClient, logger)

	active, err := swapScanner.ActivePools(ctx, pools)
	if err != nil {
		return nil, fmt.Errorf("scan swaps: %w", err)
	}

	logger.Info("active pools found",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", toBlock),
		zap.Int("pools", len(active)),
	)
	return active, nil
}

func swapTopic(input string) (common.Hash, error) {
	if input == "" {
		return dex.SwapTopic()
	}
	return config.ParseTopic(input)
}
