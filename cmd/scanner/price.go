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

	"transferScope/internal/config"
	"transferScope/internal/model"
	"transferScope/internal/pricing"
	"transferScope/internal/storage"
	"transferScope/internal/uniswap"
)

func newPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Quote a token pair at a block, or price a transfers file",
		RunE:  runPrice,
	}
	addRPCFlags(cmd)
	cmd.Flags().String("token-a", "", "base token; set to quote a single pair")
	cmd.Flags().String("token-b", "", "quote token")
	cmd.Flags().Uint64("block", 0, "block to quote at")
	cmd.Flags().String("in", "./data/transfers.csv", "transfers CSV to price")
	cmd.Flags().String("out", "./data/priced_transfers.csv", "priced transfers CSV")
	cmd.Flags().String("v2-factory", uniswap.MainnetV2Factory.Hex(), "Uniswap V2 factory")
	cmd.Flags().String("v3-factory", uniswap.MainnetV3Factory.Hex(), "Uniswap V3 factory")
	cmd.Flags().String("fee-tiers", "500,3000,10000", "V3 fee tiers probed in order")
	cmd.Flags().String("weth", uniswap.MainnetWETH.Hex(), "WETH address")
	cmd.Flags().String("usdc", uniswap.MainnetUSDC.Hex(), "USD stablecoin address")
	return cmd
}

func runPrice(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPrice(cfgFile, cmd.Flags())
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

	decimals := pricing.NewDecimalsCache(chainClient)
	resolver := pricing.NewResolver(decimals, logger,
		uniswap.NewV3(chainClient, common.HexToAddress(cfg.V3Factory), cfg.FeeTiers),
		uniswap.NewV2(chainClient, common.HexToAddress(cfg.V2Factory)),
	)

	if cfg.QuoteMode() {
		a := common.HexToAddress(cfg.TokenA)
		b := common.HexToAddress(cfg.TokenB)
		quote, err := resolver.Price(ctx, a, b, cfg.Block)
		if err != nil {
			return err
		}
		logger.Info("quote",
			zap.String("token_a", a.Hex()),
			zap.String("token_b", b.Hex()),
			zap.Uint64("block", cfg.Block),
			zap.Stringer("status", quote.Status),
			zap.Float64("price", quote.Price),
			zap.String("venue", string(quote.Venue)),
		)
		_, err = fmt.Fprintln(cmd.OutOrStdout(), quote.String())
		return err
	}

	transfers, err := storage.ReadTransfersCSV(cfg.In)
	if err != nil {
		return fmt.Errorf("read transfers: %w", err)
	}

	enricher := pricing.NewEnricher(resolver, decimals, common.HexToAddress(cfg.WETH), common.HexToAddress(cfg.USDC), logger)
	sink := storage.NewCSVPricedSink(cfg.Out)

	logger.Info("pricing start", zap.String("in", cfg.In), zap.String("out", cfg.Out), zap.Int("transfers", len(transfers)))
	failed, err := enricher.EnrichAll(ctx, transfers, func(row model.PricedTransfer) error {
		return sink.PutPricedBatch([]model.PricedTransfer{row})
	})
	if err != nil {
		return err
	}
	logger.Info("pricing finished", zap.Int("transfers", len(transfers)), zap.Int("unpriced_errors", failed))
	return nil
}
