package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"transferScope/internal/chain"
	"transferScope/internal/model"
)

// q192 is 2^192, the scale of a squared Q64.96 value.
var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// V3 reads concentrated-liquidity pools from a V3 factory.
type V3 struct {
	reader   chain.ContractStateReader
	factory  common.Address
	feeTiers []uint32
	pools    *poolCache
}

// NewV3 builds a V3 reader. Fee tiers are probed in order; empty uses DefaultFeeTiers.
func NewV3(reader chain.ContractStateReader, factory common.Address, feeTiers []uint32) *V3 {
	if len(feeTiers) == 0 {
		feeTiers = DefaultFeeTiers
	}
	tiers := make([]uint32, len(feeTiers))
	copy(tiers, feeTiers)
	return &V3{reader: reader, factory: factory, feeTiers: tiers, pools: newPoolCache()}
}

func (v *V3) Name() model.Venue {
	return model.VenueUniswapV3
}

// FindPool returns the first pool found for (a, b) across the configured fee tiers.
func (v *V3) FindPool(ctx context.Context, a, b common.Address) (common.Address, bool, error) {
	if pool, ok := v.pools.Get(a, b); ok {
		return pool, pool != (common.Address{}), nil
	}
	for _, fee := range v.feeTiers {
		pool, err := v.GetPool(ctx, a, b, fee)
		if err != nil {
			return common.Address{}, false, err
		}
		if pool != (common.Address{}) {
			v.pools.Set(a, b, pool)
			return pool, true, nil
		}
	}
	v.pools.Set(a, b, common.Address{})
	return common.Address{}, false, nil
}

// GetPool calls factory.getPool(a, b, fee) at latest state.
func (v *V3) GetPool(ctx context.Context, a, b common.Address, fee uint32) (common.Address, error) {
	parsed, err := V3FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse v3 factory abi: %w", err)
	}
	values, err := chain.CallMethod(ctx, v.reader, v.factory, parsed, "getPool", nil, a, b, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, fmt.Errorf("fee %d: %w", fee, err)
	}
	return chain.AsAddress(values[0])
}

// PoolTokens reads the pool's canonical (token0, token1) ordering.
func (v *V3) PoolTokens(ctx context.Context, pool common.Address, block uint64) (common.Address, common.Address, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("parse v3 pool abi: %w", err)
	}
	return poolTokens(ctx, v.reader, pool, parsed, block)
}

// SqrtPriceX96 reads slot0.sqrtPriceX96 at block.
func (v *V3) SqrtPriceX96(ctx context.Context, pool common.Address, block uint64) (*big.Int, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse v3 pool abi: %w", err)
	}
	values, err := chain.CallMethod(ctx, v.reader, pool, parsed, "slot0", chain.BlockArg(block))
	if err != nil {
		return nil, err
	}
	return chain.AsBigInt(values[0])
}

// RawPrice returns sqrtPriceX96^2 / 2^192, the token1 per token0 ratio in raw units.
func (v *V3) RawPrice(ctx context.Context, pool common.Address, block uint64) (*big.Rat, bool, error) {
	sqrtPrice, err := v.SqrtPriceX96(ctx, pool, block)
	if err != nil {
		return nil, false, err
	}
	return RatFromSqrtPriceX96(sqrtPrice)
}

// RatFromSqrtPriceX96 squares a Q64.96 value exactly. ok is false for an uninitialized pool.
func RatFromSqrtPriceX96(sqrtPrice *big.Int) (*big.Rat, bool, error) {
	if sqrtPrice == nil || sqrtPrice.Sign() == 0 {
		return nil, false, nil
	}
	squared := new(big.Int).Mul(sqrtPrice, sqrtPrice)
	return new(big.Rat).SetFrac(squared, q192), true, nil
}

func poolTokens(ctx context.Context, reader chain.ContractStateReader, pool common.Address, parsed abi.ABI, block uint64) (common.Address, common.Address, error) {
	values, err := chain.CallMethod(ctx, reader, pool, parsed, "token0", chain.BlockArg(block))
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token0, err := chain.AsAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token0: %w", err)
	}
	values, err = chain.CallMethod(ctx, reader, pool, parsed, "token1", chain.BlockArg(block))
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := chain.AsAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token1: %w", err)
	}
	return token0, token1, nil
}
