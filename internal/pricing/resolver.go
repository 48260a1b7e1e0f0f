package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"transferScope/internal/chain"
	"transferScope/internal/model"
)

// Resolver prices token pairs at historical blocks, trying venues in order.
type Resolver struct {
	venues   []Venue
	decimals DecimalsSource
	logger   *zap.Logger
}

// NewResolver builds a resolver. Venues are tried in the given order; the
// first one yielding a price wins.
func NewResolver(decimals DecimalsSource, logger *zap.Logger, venues ...Venue) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{venues: venues, decimals: decimals, logger: logger}
}

// Price returns the price of a denominated in b at block. An unavailable quote
// with a nil error means no venue has liquidity for the pair. An error is
// returned only when no venue produced a price and at least one venue read failed.
func (r *Resolver) Price(ctx context.Context, a, b common.Address, block uint64) (Quote, error) {
	if a == b {
		return Quote{}, fmt.Errorf("cannot price %s against itself", a.Hex())
	}

	var errs []error
	for _, venue := range r.venues {
		quote, err := r.venueQuote(ctx, venue, a, b, block)
		if err != nil {
			if ctx.Err() != nil {
				return unavailable(block), ctx.Err()
			}
			if errors.Is(err, chain.ErrEmptyResult) {
				r.logger.Debug("pool has no state at block",
					zap.String("venue", string(venue.Name())),
					zap.Uint64("block", block),
					zap.Error(err),
				)
				continue
			}
			r.logger.Warn("venue price read failed",
				zap.String("venue", string(venue.Name())),
				zap.String("token_a", a.Hex()),
				zap.String("token_b", b.Hex()),
				zap.Uint64("block", block),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", venue.Name(), err))
			continue
		}
		if quote.Available() {
			return quote, nil
		}
	}

	if len(errs) > 0 {
		return unavailable(block), fmt.Errorf("price %s/%s at block %d: %w", a.Hex(), b.Hex(), block, errors.Join(errs...))
	}
	return unavailable(block), nil
}

func (r *Resolver) venueQuote(ctx context.Context, venue Venue, a, b common.Address, block uint64) (Quote, error) {
	pool, ok, err := venue.FindPool(ctx, a, b)
	if err != nil {
		return Quote{}, fmt.Errorf("find pool: %w", err)
	}
	if !ok {
		return unavailable(block), nil
	}

	// Token ordering is pool specific and is read on every query.
	token0, token1, err := venue.PoolTokens(ctx, pool, block)
	if err != nil {
		return Quote{}, fmt.Errorf("pool %s tokens: %w", pool.Hex(), err)
	}
	var orderCorrect bool
	switch {
	case token0 == a && token1 == b:
		orderCorrect = true
	case token0 == b && token1 == a:
		orderCorrect = false
	default:
		return Quote{}, fmt.Errorf("pool %s holds %s/%s, not the requested pair", pool.Hex(), token0.Hex(), token1.Hex())
	}

	raw, ok, err := venue.RawPrice(ctx, pool, block)
	if err != nil {
		return Quote{}, fmt.Errorf("pool %s state: %w", pool.Hex(), err)
	}
	if !ok {
		return unavailable(block), nil
	}

	decA, err := r.decimals.Decimals(ctx, a)
	if err != nil {
		return Quote{}, fmt.Errorf("decimals %s: %w", a.Hex(), err)
	}
	decB, err := r.decimals.Decimals(ctx, b)
	if err != nil {
		return Quote{}, fmt.Errorf("decimals %s: %w", b.Hex(), err)
	}

	price, ok := ScalePrice(raw, orderCorrect, DecimalAdjustment(decA, decB))
	if !ok {
		return unavailable(block), nil
	}

	return Quote{
		Status: QuoteFound,
		Price:  price,
		Venue:  venue.Name(),
		Pair:   model.PairReference{Venue: venue.Name(), Pool: pool, OrderCorrect: orderCorrect},
		Block:  block,
	}, nil
}

// DecimalAdjustment is the power of ten turning a raw b-per-a ratio into human units.
func DecimalAdjustment(decA, decB uint8) int {
	return int(decA) - int(decB)
}

// ScalePrice converts a raw token1-per-token0 ratio into the human price of
// the requested base token. When the request order is reversed the ratio is
// inverted before scaling by 10^adjustment.
func ScalePrice(raw *big.Rat, orderCorrect bool, adjustment int) (float64, bool) {
	if raw == nil || raw.Sign() <= 0 {
		return 0, false
	}
	ratio := new(big.Rat).Set(raw)
	if !orderCorrect {
		ratio.Inv(ratio)
	}

	exp := adjustment
	if exp < 0 {
		exp = -exp
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
	if adjustment >= 0 {
		ratio.Mul(ratio, new(big.Rat).SetInt(scale))
	} else {
		ratio.Quo(ratio, new(big.Rat).SetInt(scale))
	}

	price, _ := ratio.Float64()
	if price == 0 || math.IsInf(price, 0) {
		return 0, false
	}
	return price, true
}
