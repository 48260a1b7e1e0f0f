package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"transferScope/internal/chain"
	"transferScope/internal/config"
	"transferScope/internal/erc20"
	"transferScope/internal/metrics"
	"transferScope/internal/model"
	"transferScope/internal/orchestrator"
	"transferScope/internal/scanner"
	"transferScope/internal/storage"
	"transferScope/internal/storage/postgres"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan Transfer events for a list of tokens",
		RunE:  runScan,
	}
	addRPCFlags(cmd)
	cmd.Flags().String("token-source", "csv", "token source (csv, postgres)")
	cmd.Flags().String("tokens", "./data/tokens.csv", "tokens CSV path")
	cmd.Flags().String("postgres-dsn", "", "Postgres DSN for the token source or memo")
	cmd.Flags().Int("token-limit", 0, "maximum tokens read from postgres, 0 reads all")
	cmd.Flags().String("out", "./data/transfers.csv", "transfer output path")
	cmd.Flags().String("format", "csv", "transfer output format (csv, jsonl)")
	cmd.Flags().Int("workers", 4, "tokens scanned in parallel")
	cmd.Flags().Uint64("latest-block", 0, "last block scanned, 0 means chain head")
	cmd.Flags().Uint64("initial-chunk", scanner.DefaultInitialChunkSize, "initial blocks per log request")
	cmd.Flags().Uint64("min-chunk", scanner.DefaultMinChunkSize, "minimum blocks per log request")
	cmd.Flags().Uint64("max-chunk", 0, "maximum blocks per log request, 0 is unbounded")
	cmd.Flags().Int("floor-retries", scanner.DefaultFloorRetries, "failures at the minimum chunk before a window is skipped")
	cmd.Flags().Duration("retry-backoff", 250*time.Millisecond, "pause before retrying a failed window")
	cmd.Flags().StringSlice("too-large-markers", nil, "error substrings meaning the result was too large (comma-separated)")
	cmd.Flags().String("memo", "memory", "chunk memo backend (memory, file, redis, postgres)")
	cmd.Flags().String("memo-path", "./data/chunk_memo.json", "file memo path")
	cmd.Flags().String("redis-addr", "localhost:6379", "redis address for the redis memo")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().Int("redis-db", 0, "redis database")
	cmd.Flags().String("redis-prefix", "transferscope:memo", "redis key prefix")
	cmd.Flags().Duration("memo-ttl", 0, "redis memo entry TTL, 0 keeps entries")
	cmd.Flags().Bool("resume", false, "restart each token where the memo says the last run stopped")
	cmd.Flags().String("metrics-addr", "", "serve /metrics on this address while scanning")
	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadScan(cfgFile, cmd.Flags())
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

	var store *postgres.Store
	if cfg.TokenSource == "postgres" || cfg.Memo == "postgres" {
		store, err = postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	tokens, err := loadTokens(ctx, cfg, store)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		logger.Warn("no tokens to scan", zap.String("source", cfg.TokenSource))
		return nil
	}

	memo, closeMemo, err := openMemo(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeMemo()

	var sink storage.TransferSink
	switch cfg.Format {
	case "jsonl":
		sink = storage.NewJsonlTransferSink(cfg.Out)
	default:
		sink = storage.NewCSVTransferSink(cfg.Out)
	}

	scanMetrics := metrics.NewScanMetrics()
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := scanMetrics.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	markers := cfg.TooLargeMarkers
	if len(markers) == 0 {
		markers = chain.DefaultTooLargeMarkers()
	}

	s := scanner.New(erc20.NewTransferQuerier(chainClient), chain.NewClassifier(markers), scanner.Config{
		InitialChunkSize: cfg.InitialChunk,
		MinChunkSize:     cfg.MinChunk,
		MaxChunkSize:     cfg.MaxChunk,
		FloorRetries:     cfg.FloorRetries,
		RetryBackoff:     cfg.RetryBackoff,
	}, scanMetrics, logger)

	orch := orchestrator.New(s, sink, memo, chainClient, orchestrator.Config{
		Workers:     cfg.Workers,
		LatestBlock: cfg.LatestBlock,
		Resume:      cfg.Resume,
	}, scanMetrics, logger)

	logger.Info("scan start",
		zap.String("token_source", cfg.TokenSource),
		zap.Int("tokens", len(tokens)),
		zap.String("out", cfg.Out),
		zap.String("format", cfg.Format),
		zap.String("memo", cfg.Memo),
		zap.Uint64("initial_chunk", cfg.InitialChunk),
		zap.Uint64("min_chunk", cfg.MinChunk),
		zap.String("pg_dsn", redactDSN(cfg.PostgresDSN)),
	)

	report, err := orch.Run(ctx, tokens)
	if err != nil {
		return err
	}
	for _, failure := range report.Failures {
		logger.Error("token scan failed",
			zap.String("token", failure.Token.Hex()),
			zap.Uint64("from", failure.FromBlock),
			zap.Error(failure.Err),
		)
	}
	var gapBlocks uint64
	for _, gap := range report.Gaps {
		gapBlocks += gap.Blocks()
		for _, r := range gap.Ranges {
			logger.Error("blocks skipped, transfers missing",
				zap.String("token", gap.Token.Hex()),
				zap.Uint64("from", r.From),
				zap.Uint64("to", r.To),
			)
		}
	}
	if len(report.Failures) > 0 || len(report.Gaps) > 0 {
		return fmt.Errorf("%d of %d tokens failed, %d tokens have %d skipped blocks",
			len(report.Failures), report.Tokens, len(report.Gaps), gapBlocks)
	}
	return nil
}

func loadTokens(ctx context.Context, cfg config.ScanConfig, store *postgres.Store) ([]model.Token, error) {
	if cfg.TokenSource == "postgres" {
		tokens, err := store.LoadTokens(ctx, cfg.TokenLimit)
		if err != nil {
			return nil, fmt.Errorf("load tokens: %w", err)
		}
		return tokens, nil
	}
	tokens, err := storage.ReadTokensCSV(cfg.TokensPath)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	return tokens, nil
}

func openMemo(ctx context.Context, cfg config.ScanConfig, store *postgres.Store) (scanner.Memo, func(), error) {
	noop := func() {}
	switch cfg.Memo {
	case "file":
		return scanner.NewFileMemo(cfg.MemoPath), noop, nil
	case "redis":
		memo, err := scanner.NewRedisMemo(scanner.RedisMemoConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
			TTL:       cfg.MemoTTL,
		})
		if err != nil {
			return nil, noop, err
		}
		if err := memo.Ping(ctx); err != nil {
			_ = memo.Close()
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		return memo, func() { _ = memo.Close() }, nil
	case "postgres":
		return store, noop, nil
	default:
		return scanner.NewMemoryMemo(), noop, nil
	}
}
