package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transferScope/internal/model"
)

// Pricer prices a in units of b at block.
type Pricer interface {
	Price(ctx context.Context, a, b common.Address, block uint64) (Quote, error)
}

// Enricher annotates transfers with their WETH and USD price at the transfer block.
type Enricher struct {
	pricer   Pricer
	decimals DecimalsSource
	weth     common.Address
	usd      common.Address
	logger   *zap.Logger

	mu      sync.Mutex
	wethUSD map[uint64]Quote
}

func NewEnricher(pricer Pricer, decimals DecimalsSource, weth, usd common.Address, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		pricer:   pricer,
		decimals: decimals,
		weth:     weth,
		usd:      usd,
		logger:   logger,
		wethUSD:  make(map[uint64]Quote),
	}
}

// Enrich prices one transfer. Missing liquidity leaves the row unpriced; the
// returned error reports a failed venue read and the row is still usable.
func (e *Enricher) Enrich(ctx context.Context, transfer model.TransferEvent) (model.PricedTransfer, error) {
	row := model.PricedTransfer{Transfer: transfer}
	block := transfer.BlockNumber

	if transfer.Token == e.weth {
		row.Priced = true
		row.PriceWETH = 1
	} else {
		quote, err := e.pricer.Price(ctx, transfer.Token, e.weth, block)
		if err != nil {
			return row, err
		}
		if !quote.Available() {
			return row, nil
		}
		row.Priced = true
		row.PriceWETH = quote.Price
		row.Venue = quote.Venue
		row.Pool = quote.Pair.Pool.Hex()
	}

	wethQuote, err := e.wethPrice(ctx, block)
	if err != nil {
		return row, err
	}
	if !wethQuote.Available() {
		return row, nil
	}
	row.HasUSD = true
	row.PriceUSD = row.PriceWETH * wethQuote.Price

	decimals, err := e.decimals.Decimals(ctx, transfer.Token)
	if err != nil {
		return row, fmt.Errorf("decimals %s: %w", transfer.Token.Hex(), err)
	}
	if transfer.Quantity != nil {
		amount := decimal.NewFromBigInt(transfer.Quantity, -int32(decimals))
		row.ValueUSD = amount.Mul(decimal.NewFromFloat(row.PriceUSD))
	}
	return row, nil
}

// wethPrice memoizes the WETH/USD quote per block; transfers cluster in blocks.
func (e *Enricher) wethPrice(ctx context.Context, block uint64) (Quote, error) {
	e.mu.Lock()
	quote, ok := e.wethUSD[block]
	e.mu.Unlock()
	if ok {
		return quote, nil
	}

	quote, err := e.pricer.Price(ctx, e.weth, e.usd, block)
	if err != nil {
		return quote, fmt.Errorf("weth price at block %d: %w", block, err)
	}
	e.mu.Lock()
	e.wethUSD[block] = quote
	e.mu.Unlock()
	return quote, nil
}

// EnrichAll prices every transfer in order and hands each row to emit.
// Rows whose price lookup failed are emitted unpriced and counted in the result.
func (e *Enricher) EnrichAll(ctx context.Context, transfers []model.TransferEvent, emit func(model.PricedTransfer) error) (int, error) {
	failed := 0
	for _, transfer := range transfers {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		row, err := e.Enrich(ctx, transfer)
		if err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			failed++
			e.logger.Warn("price lookup failed",
				zap.String("token", transfer.Token.Hex()),
				zap.Uint64("block", transfer.BlockNumber),
				zap.String("tx", transfer.TxHash.Hex()),
				zap.Error(err),
			)
		}
		if err := emit(row); err != nil {
			return failed, err
		}
	}
	return failed, nil
}
