package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// TokenConfig holds configuration for the token command.
type TokenConfig struct {
	RPC         RPCConfig
	LogLevel    string
	Addresses   []string
	Out         string
	PostgresDSN string

	EtherscanAPIKey  string
	EtherscanURL     string
	ChainID          int64
	EtherscanRate    float64
	EtherscanRetries int
	EtherscanTimeout time.Duration
}

// LoadToken merges config file, environment variables, and flags into TokenConfig.
func LoadToken(cfgFile string, flags *pflag.FlagSet) (TokenConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"out":               "./data/tokens.csv",
		"etherscan-url":     "https://api.etherscan.io/v2/api",
		"chain-id":          int64(1),
		"etherscan-rate":    4.0,
		"etherscan-retries": 3,
		"etherscan-timeout": 15 * time.Second,
	})
	if err != nil {
		return TokenConfig{}, err
	}

	cfg := TokenConfig{
		RPC:              rpcConfig(v),
		LogLevel:         v.GetString("log-level"),
		Addresses:        getStringSlice(v, "address"),
		Out:              v.GetString("out"),
		PostgresDSN:      v.GetString("postgres-dsn"),
		EtherscanAPIKey:  v.GetString("etherscan-api-key"),
		EtherscanURL:     v.GetString("etherscan-url"),
		ChainID:          v.GetInt64("chain-id"),
		EtherscanRate:    v.GetFloat64("etherscan-rate"),
		EtherscanRetries: v.GetInt("etherscan-retries"),
		EtherscanTimeout: v.GetDuration("etherscan-timeout"),
	}
	return cfg, cfg.Validate()
}

// Validate reports the first inconsistent setting.
func (c TokenConfig) Validate() error {
	if err := c.RPC.validate(); err != nil {
		return err
	}
	if len(c.Addresses) == 0 {
		return fmt.Errorf("at least one --address is required")
	}
	if c.EtherscanAPIKey == "" {
		return fmt.Errorf("etherscan api key is required (--etherscan-api-key or %s_ETHERSCAN_API_KEY)", EnvPrefix)
	}
	if c.Out == "" && c.PostgresDSN == "" {
		return fmt.Errorf("out path or postgres-dsn is required")
	}
	return nil
}
