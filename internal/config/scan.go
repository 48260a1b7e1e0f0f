package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ScanConfig holds configuration for the scan command.
type ScanConfig struct {
	RPC      RPCConfig
	LogLevel string

	TokenSource string
	TokensPath  string
	PostgresDSN string
	TokenLimit  int

	Out    string
	Format string

	Workers         int
	LatestBlock     uint64
	InitialChunk    uint64
	MinChunk        uint64
	MaxChunk        uint64
	FloorRetries    int
	RetryBackoff    time.Duration
	TooLargeMarkers []string

	Memo          string
	MemoPath      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	MemoTTL       time.Duration
	Resume        bool

	MetricsAddr string
}

// LoadScan merges config file, environment variables, and flags into ScanConfig.
func LoadScan(cfgFile string, flags *pflag.FlagSet) (ScanConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"token-source":  "csv",
		"tokens":        "./data/tokens.csv",
		"token-limit":   0,
		"out":           "./data/transfers.csv",
		"format":        "csv",
		"workers":       4,
		"initial-chunk": uint64(5000),
		"min-chunk":     uint64(1),
		"floor-retries": 3,
		"retry-backoff": 250 * time.Millisecond,
		"memo":          "memory",
		"memo-path":     "./data/chunk_memo.json",
		"redis-addr":    "localhost:6379",
		"redis-prefix":  "transferscope:memo",
	})
	if err != nil {
		return ScanConfig{}, err
	}

	cfg := ScanConfig{
		RPC:             rpcConfig(v),
		LogLevel:        v.GetString("log-level"),
		TokenSource:     v.GetString("token-source"),
		TokensPath:      v.GetString("tokens"),
		PostgresDSN:     v.GetString("postgres-dsn"),
		TokenLimit:      v.GetInt("token-limit"),
		Out:             v.GetString("out"),
		Format:          v.GetString("format"),
		Workers:         v.GetInt("workers"),
		LatestBlock:     v.GetUint64("latest-block"),
		InitialChunk:    v.GetUint64("initial-chunk"),
		MinChunk:        v.GetUint64("min-chunk"),
		MaxChunk:        v.GetUint64("max-chunk"),
		FloorRetries:    v.GetInt("floor-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		TooLargeMarkers: getStringSlice(v, "too-large-markers"),
		Memo:            v.GetString("memo"),
		MemoPath:        v.GetString("memo-path"),
		RedisAddr:       v.GetString("redis-addr"),
		RedisPassword:   v.GetString("redis-password"),
		RedisDB:         v.GetInt("redis-db"),
		RedisPrefix:     v.GetString("redis-prefix"),
		MemoTTL:         v.GetDuration("memo-ttl"),
		Resume:          v.GetBool("resume"),
		MetricsAddr:     v.GetString("metrics-addr"),
	}
	return cfg, cfg.Validate()
}

// Validate reports the first inconsistent setting.
func (c ScanConfig) Validate() error {
	if err := c.RPC.validate(); err != nil {
		return err
	}
	if err := oneOf("token-source", c.TokenSource, "csv", "postgres"); err != nil {
		return err
	}
	if err := oneOf("format", c.Format, "csv", "jsonl"); err != nil {
		return err
	}
	if err := oneOf("memo", c.Memo, "memory", "file", "redis", "postgres"); err != nil {
		return err
	}
	if c.TokenSource == "postgres" || c.Memo == "postgres" {
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn is required for the postgres token source or memo")
		}
	}
	if c.TokenSource == "csv" && c.TokensPath == "" {
		return fmt.Errorf("tokens path is required")
	}
	if c.Out == "" {
		return fmt.Errorf("out path is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be greater than zero")
	}
	if c.MinChunk == 0 {
		return fmt.Errorf("min-chunk must be greater than zero")
	}
	if c.InitialChunk < c.MinChunk {
		return fmt.Errorf("initial-chunk %d is below min-chunk %d", c.InitialChunk, c.MinChunk)
	}
	if c.MaxChunk != 0 && c.MaxChunk < c.InitialChunk {
		return fmt.Errorf("max-chunk %d is below initial-chunk %d", c.MaxChunk, c.InitialChunk)
	}
	return nil
}
