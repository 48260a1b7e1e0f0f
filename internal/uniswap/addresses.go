package uniswap

import "github.com/ethereum/go-ethereum/common"

// Ethereum mainnet deployments.
var (
	MainnetV2Factory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	MainnetV3Factory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	MainnetWETH      = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	MainnetUSDC      = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

// DefaultFeeTiers are the V3 fee tiers probed, in order.
var DefaultFeeTiers = []uint32{500, 3000, 10000}
