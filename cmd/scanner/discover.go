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

	"transferScope/internal/config"
	"transferScope/internal/indexer"
	"transferScope/internal/storage"
	"transferScope/internal/storage/postgres"
)

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find ERC20 contracts created in a block range",
		RunE:  runDiscover,
	}
	addRPCFlags(cmd)
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("batch-size", 100, "blocks per checkpointed batch")
	cmd.Flags().Int("workers", 8, "blocks fetched in parallel")
	cmd.Flags().String("out", "./data/tokens.csv", "tokens CSV path")
	cmd.Flags().String("postgres-dsn", "", "also upsert tokens into Postgres")
	cmd.Flags().String("checkpoint", "./data/discover_checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC call")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	return cmd
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDiscover(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := dialChain(ctx, cfg.RPC, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	sinks, closeSinks, err := tokenSinks(ctx, cfg.Out, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer closeSinks()

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		BatchSize:         cfg.BatchSize,
		Workers:           cfg.Workers,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, sinks, logger)

	logger.Info("discover start",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Int("workers", cfg.Workers),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PostgresDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

// tokenSinks builds the CSV and Postgres token destinations that are configured.
func tokenSinks(ctx context.Context, out, dsn string) (storage.TokenSinks, func(), error) {
	var sinks storage.TokenSinks
	closeFn := func() {}
	if out != "" {
		sinks = append(sinks, storage.NewCSVTokenSink(out))
	}
	if dsn != "" {
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return nil, closeFn, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, closeFn, fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, store.TokenSink(ctx))
		closeFn = store.Close
	}
	return sinks, closeFn, nil
}
