package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/drmick/unichecker/internal/cache"
	"github.com/drmick/unichecker/internal/chain"
	"github.com/drmick/unichecker/internal/config"
	"github.com/drmick/unichecker/internal/loader"
	"github.com/drmick/unichecker/internal/storage"
	"github.com/drmick/unichecker/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "unichecker",
		Short:        "Snapshot active DEX pools and check their reserves",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Find active pools and write their reserve snapshot",
		RunE:  runSnapshot,
	}

	addChainFlags(runCmd)
	addScanFlags(runCmd)
	runCmd.Flags().StringSlice("checking-blocks", nil, "per-pool block overrides (comma-separated pool=block)")
	runCmd.Flags().Int("workers", 8, "concurrent pool loaders")
	runCmd.Flags().Bool("skip-failed-pools", false, "skip pools with fatal contract errors instead of aborting")
	runCmd.Flags().Bool("cache-unresolved", false, "cache symbols that could not be resolved")
	runCmd.Flags().String("pools-file", "", "read active pools from file instead of discovery and scan")
	runCmd.Flags().String("out", config.DefaultOut, "output JSON path ({from} and {to} are expanded)")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for snapshot upserts")
	runCmd.Flags().Int("pg-batch-size", 1000, "batch size for Postgres writes")

	root.AddCommand(runCmd)

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "List every pool created by the factory",
		RunE:  runDiscover,
	}

	addChainFlags(discoverCmd)
	discoverCmd.Flags().String("list-out", "./cache/all_pools.txt", "output pool list path")

	root.AddCommand(discoverCmd)

	activeCmd := &cobra.Command{
		Use:   "active",
		Short: "List pools with swaps in the block range",
		RunE:  runActive,
	}

	addChainFlags(activeCmd)
	addScanFlags(activeCmd)
	activeCmd.Flags().String("list-out", "./cache/actual_pools.txt", "output pool list path")

	root.AddCommand(activeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "chain RPC URL")
	cmd.Flags().String("factory", "", "pool factory contract address")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC call")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("from", 0, "first block of the activity range (inclusive)")
	cmd.Flags().Uint64("to", 0, "last block of the activity range (inclusive), 0 means latest")
	cmd.Flags().Uint64("window", 1000, "blocks per eth_getLogs request")
	cmd.Flags().String("swap-topic0", "", "swap event topic0, defaults to the UniswapV2 Swap event")
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	checkingBlocks, err := config.ParseCheckingBlocks(cfg.CheckingBlocks)
	if err != nil {
		return err
	}

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

	var sink storage.Storage = storage.NewJSONStorage(cfg.OutputPath(cfg.FromBlock, toBlock))
	sinks := []storage.Storage{sink}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.PGBatchSize)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, store)
	}

	logger.Info("snapshot start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("factory", cfg.Factory),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", toBlock),
		zap.Uint64("window", cfg.Window),
		zap.Int("workers", cfg.Workers),
		zap.Int("checking_blocks", len(checkingBlocks)),
		zap.Bool("skip_failed_pools", cfg.SkipFailedPools),
		zap.Bool("cache_unresolved", cfg.CacheUnresolved),
		zap.String("pools_file", cfg.PoolsFile),
		zap.String("out", cfg.OutputPath(cfg.FromBlock, toBlock)),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	active, err := activePools(ctx, cfg, chainClient, toBlock, logger)
	if err != nil {
		return err
	}

	poolLoader := loader.NewLoader(loader.Config{
		FallbackBlock:   toBlock,
		CheckingBlocks:  checkingBlocks,
		Workers:         cfg.Workers,
		SkipFailedPools: cfg.SkipFailedPools,
	}, chainClient, cache.NewSymbolCache(cfg.CacheUnresolved), logger)

	records, err := poolLoader.Load(ctx, active)
	if err != nil {
		return fmt.Errorf("load pools: %w", err)
	}

	for _, s := range sinks {
		if err := s.PutPoolRecords(ctx, records); err != nil {
			return fmt.Errorf("store records: %w", err)
		}
	}

	logger.Info("snapshot complete", zap.Int("records", len(records)))
	return nil
}

func dial(ctx context.Context, cfg config.Config, logger *zap.Logger) (*chain.Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	logger.Info("rpc connected", zap.String("chain_id", chainID.String()))
	return client, nil
}

func resolveToBlock(ctx context.Context, cfg config.Config, chainClient *chain.Client, logger *zap.Logger) (uint64, error) {
	if cfg.ToBlock != 0 {
		return cfg.ToBlock, nil
	}
	latest, err := chainClient.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}
	logger.Info("last chain block", zap.Uint64("block", latest))
	return latest, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
