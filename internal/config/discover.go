package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// DiscoverConfig holds configuration for the discover command.
type DiscoverConfig struct {
	RPC               RPCConfig
	LogLevel          string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Workers           int
	Out               string
	PostgresDSN       string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// LoadDiscover merges config file, environment variables, and flags into DiscoverConfig.
func LoadDiscover(cfgFile string, flags *pflag.FlagSet) (DiscoverConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"batch-size":         uint64(100),
		"workers":            8,
		"out":                "./data/tokens.csv",
		"checkpoint":         "./data/discover_checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
	})
	if err != nil {
		return DiscoverConfig{}, err
	}

	cfg := DiscoverConfig{
		RPC:               rpcConfig(v),
		LogLevel:          v.GetString("log-level"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Workers:           v.GetInt("workers"),
		Out:               v.GetString("out"),
		PostgresDSN:       v.GetString("postgres-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
	}
	return cfg, cfg.Validate()
}

// Validate reports the first inconsistent setting.
func (c DiscoverConfig) Validate() error {
	if err := c.RPC.validate(); err != nil {
		return err
	}
	if c.ToBlock != 0 && c.ToBlock < c.FromBlock {
		return fmt.Errorf("to block %d is before from block %d", c.ToBlock, c.FromBlock)
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch-size must be greater than zero")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be greater than zero")
	}
	if c.Out == "" && c.PostgresDSN == "" {
		return fmt.Errorf("out path or postgres-dsn is required")
	}
	return nil
}
