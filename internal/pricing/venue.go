package pricing

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"transferScope/internal/model"
	"transferScope/internal/uniswap"
)

// Venue is one AMM contract family able to price a token pair.
type Venue interface {
	Name() model.Venue
	// FindPool returns the venue's pool for the unordered pair (a, b).
	FindPool(ctx context.Context, a, b common.Address) (common.Address, bool, error)
	// PoolTokens returns the pool's canonical (token0, token1) ordering.
	PoolTokens(ctx context.Context, pool common.Address, block uint64) (common.Address, common.Address, error)
	// RawPrice returns token1 per token0 in raw units at block; ok is false
	// when the pool holds no usable state (empty reserves, uninitialized price).
	RawPrice(ctx context.Context, pool common.Address, block uint64) (*big.Rat, bool, error)
}

var (
	_ Venue = (*uniswap.V3)(nil)
	_ Venue = (*uniswap.V2)(nil)
)
