package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"

	"transferScope/internal/uniswap"
)

// PriceConfig holds configuration for the price command. TokenA set selects
// single quote mode; otherwise In is enriched into Out.
type PriceConfig struct {
	RPC      RPCConfig
	LogLevel string

	TokenA string
	TokenB string
	Block  uint64

	In  string
	Out string

	V2Factory string
	V3Factory string
	FeeTiers  []uint32
	WETH      string
	USDC      string
}

// QuoteMode reports whether a single pair was requested.
func (c PriceConfig) QuoteMode() bool {
	return c.TokenA != ""
}

// LoadPrice merges config file, environment variables, and flags into PriceConfig.
func LoadPrice(cfgFile string, flags *pflag.FlagSet) (PriceConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"in":         "./data/transfers.csv",
		"out":        "./data/priced_transfers.csv",
		"v2-factory": uniswap.MainnetV2Factory.Hex(),
		"v3-factory": uniswap.MainnetV3Factory.Hex(),
		"fee-tiers":  "500,3000,10000",
		"weth":       uniswap.MainnetWETH.Hex(),
		"usdc":       uniswap.MainnetUSDC.Hex(),
	})
	if err != nil {
		return PriceConfig{}, err
	}

	tiers, err := getUint32Slice(v, "fee-tiers")
	if err != nil {
		return PriceConfig{}, err
	}

	cfg := PriceConfig{
		RPC:       rpcConfig(v),
		LogLevel:  v.GetString("log-level"),
		TokenA:    v.GetString("token-a"),
		TokenB:    v.GetString("token-b"),
		Block:     v.GetUint64("block"),
		In:        v.GetString("in"),
		Out:       v.GetString("out"),
		V2Factory: v.GetString("v2-factory"),
		V3Factory: v.GetString("v3-factory"),
		FeeTiers:  tiers,
		WETH:      v.GetString("weth"),
		USDC:      v.GetString("usdc"),
	}
	return cfg, cfg.Validate()
}

// Validate reports the first inconsistent setting.
func (c PriceConfig) Validate() error {
	if err := c.RPC.validate(); err != nil {
		return err
	}
	addresses := map[string]string{
		"v2-factory": c.V2Factory,
		"v3-factory": c.V3Factory,
		"weth":       c.WETH,
		"usdc":       c.USDC,
	}
	if c.QuoteMode() {
		addresses["token-a"] = c.TokenA
		addresses["token-b"] = c.TokenB
		if c.Block == 0 {
			return fmt.Errorf("block is required in quote mode")
		}
	} else if c.In == "" || c.Out == "" {
		return fmt.Errorf("in and out paths are required")
	}
	for key, value := range addresses {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("%s: invalid address %q", key, value)
		}
	}
	if len(c.FeeTiers) == 0 {
		return fmt.Errorf("fee-tiers must not be empty")
	}
	return nil
}
