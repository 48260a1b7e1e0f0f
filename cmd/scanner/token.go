package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"transferScope/internal/config"
	"transferScope/internal/etherscan"
	"transferScope/internal/indexer"
	"transferScope/internal/model"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Resolve creation block and metadata for token addresses",
		RunE:  runToken,
	}
	addRPCFlags(cmd)
	cmd.Flags().StringSlice("address", nil, "token addresses (comma-separated)")
	cmd.Flags().String("out", "./data/tokens.csv", "tokens CSV path")
	cmd.Flags().String("postgres-dsn", "", "also upsert tokens into Postgres")
	cmd.Flags().String("etherscan-api-key", "", "block explorer API key")
	cmd.Flags().String("etherscan-url", "https://api.etherscan.io/v2/api", "block explorer API URL")
	cmd.Flags().Int64("chain-id", 1, "chain id passed to the explorer")
	cmd.Flags().Float64("etherscan-rate", 4, "explorer requests per second")
	cmd.Flags().Int("etherscan-retries", 3, "explorer retry attempts")
	cmd.Flags().Duration("etherscan-timeout", 0, "explorer request timeout (default 15s)")
	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadToken(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := dialChain(ctx, cfg.RPC, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	explorer, err := etherscan.NewClient(etherscan.Config{
		APIKey:          cfg.EtherscanAPIKey,
		BaseURL:         cfg.EtherscanURL,
		ChainID:         cfg.ChainID,
		Timeout:         cfg.EtherscanTimeout,
		MaxRetries:      cfg.EtherscanRetries,
		RateLimitPerSec: cfg.EtherscanRate,
	}, logger)
	if err != nil {
		return err
	}

	sinks, closeSinks, err := tokenSinks(ctx, cfg.Out, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer closeSinks()

	tokens := make([]model.Token, 0, len(addresses))
	var failed int
	for _, address := range addresses {
		token, err := indexer.ResolveToken(ctx, explorer, chainClient, address, logger)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			level := zap.ErrorLevel
			if errors.Is(err, etherscan.ErrNotFound) {
				level = zap.WarnLevel
			}
			logger.Log(level, "token resolution failed", zap.String("token", address.Hex()), zap.Error(err))
			continue
		}
		tokens = append(tokens, token)
	}

	if len(tokens) > 0 {
		if err := sinks.PutTokens(tokens); err != nil {
			return fmt.Errorf("store tokens: %w", err)
		}
	}
	logger.Info("token resolution finished", zap.Int("resolved", len(tokens)), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d tokens could not be resolved", failed, len(addresses))
	}
	return nil
}
