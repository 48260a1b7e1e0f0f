package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"transferScope/internal/chain"
	"transferScope/internal/config"
)

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "scanner",
		Short:        "ERC20 transfer scanner and Uniswap price resolver",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newScanCmd(), newPriceCmd(), newDiscoverCmd(), newTokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRPCFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().Duration("request-timeout", 0, "per-request RPC timeout (default 30s)")
	cmd.Flags().Float64("rate-limit", 0, "maximum RPC requests per second, 0 disables")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func dialChain(ctx context.Context, cfg config.RPCConfig, logger *zap.Logger) (*chain.Client, error) {
	client, err := chain.NewClient(ctx, cfg.URL, chain.ClientOptions{
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	logger.Info("rpc connected", zap.String("chain_id", chainID.String()), zap.Duration("request_timeout", cfg.RequestTimeout))
	return client, nil
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
