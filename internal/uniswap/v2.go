package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"transferScope/internal/chain"
	"transferScope/internal/model"
)

// V2 reads constant-product pairs from a V2 factory.
type V2 struct {
	reader  chain.ContractStateReader
	factory common.Address
	pools   *poolCache
}

func NewV2(reader chain.ContractStateReader, factory common.Address) *V2 {
	return &V2{reader: reader, factory: factory, pools: newPoolCache()}
}

func (v *V2) Name() model.Venue {
	return model.VenueUniswapV2
}

// FindPool returns the pair for (a, b). Pairs are never destroyed, so lookups
// run against latest state and are cached.
func (v *V2) FindPool(ctx context.Context, a, b common.Address) (common.Address, bool, error) {
	if pool, ok := v.pools.Get(a, b); ok {
		return pool, pool != (common.Address{}), nil
	}
	pool, err := v.GetPair(ctx, a, b)
	if err != nil {
		return common.Address{}, false, err
	}
	v.pools.Set(a, b, pool)
	return pool, pool != (common.Address{}), nil
}

// GetPair calls factory.getPair(a, b) at latest state.
func (v *V2) GetPair(ctx context.Context, a, b common.Address) (common.Address, error) {
	parsed, err := V2FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse v2 factory abi: %w", err)
	}
	values, err := chain.CallMethod(ctx, v.reader, v.factory, parsed, "getPair", nil, a, b)
	if err != nil {
		return common.Address{}, err
	}
	return chain.AsAddress(values[0])
}

// PoolTokens reads the pair's canonical (token0, token1) ordering.
func (v *V2) PoolTokens(ctx context.Context, pool common.Address, block uint64) (common.Address, common.Address, error) {
	parsed, err := V2PairABI()
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("parse v2 pair abi: %w", err)
	}
	return poolTokens(ctx, v.reader, pool, parsed, block)
}

// Reserves reads getReserves at block.
func (v *V2) Reserves(ctx context.Context, pool common.Address, block uint64) (*big.Int, *big.Int, error) {
	parsed, err := V2PairABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse v2 pair abi: %w", err)
	}
	values, err := chain.CallMethod(ctx, v.reader, pool, parsed, "getReserves", chain.BlockArg(block))
	if err != nil {
		return nil, nil, err
	}
	if len(values) < 2 {
		return nil, nil, fmt.Errorf("getReserves returned %d values", len(values))
	}
	reserve0, err := chain.AsBigInt(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := chain.AsBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("reserve1: %w", err)
	}
	return reserve0, reserve1, nil
}

// RawPrice returns reserve1/reserve0 in raw units. ok is false when a reserve is empty.
func (v *V2) RawPrice(ctx context.Context, pool common.Address, block uint64) (*big.Rat, bool, error) {
	reserve0, reserve1, err := v.Reserves(ctx, pool, block)
	if err != nil {
		return nil, false, err
	}
	if reserve0.Sign() == 0 || reserve1.Sign() == 0 {
		return nil, false, nil
	}
	return new(big.Rat).SetFrac(reserve1, reserve0), true, nil
}
