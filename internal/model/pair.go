package model

import "github.com/ethereum/go-ethereum/common"

// Venue identifies an AMM contract family.
type Venue string

const (
	VenueUniswapV3 Venue = "uniswap_v3"
	VenueUniswapV2 Venue = "uniswap_v2"
)

// PairReference points at a venue pool and records whether the caller's
// (tokenA, tokenB) order matches the pool's (token0, token1).
type PairReference struct {
	Venue        Venue
	Pool         common.Address
	OrderCorrect bool
}

// PricePoint is a price of one token in another at a block.
type PricePoint struct {
	BlockNumber uint64
	Price       float64
	Venue       Venue
}
