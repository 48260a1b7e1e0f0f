package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loaders read.
const EnvPrefix = "SCANNER"

// RPCConfig is shared by every command that talks to a node.
type RPCConfig struct {
	URL            string
	RequestTimeout time.Duration
	RateLimit      float64
}

func (c RPCConfig) validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("rpc url is required (--rpc or %s_RPC)", EnvPrefix)
	}
	return nil
}

// newViper merges config file, environment variables, and flags. defaults
// are applied before anything else.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("rate-limit", 0.0)
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func rpcConfig(v *viper.Viper) RPCConfig {
	return RPCConfig{
		URL:            v.GetString("rpc"),
		RequestTimeout: v.GetDuration("request-timeout"),
		RateLimit:      v.GetFloat64("rate-limit"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		// pflag string slices arrive already split; env values do not.
		if len(typed) == 1 {
			return splitAndClean(typed[0])
		}
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getUint32Slice(v *viper.Viper, key string) ([]uint32, error) {
	items := getStringSlice(v, key)
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]uint32, 0, len(items))
	for _, item := range items {
		n, err := strconv.ParseUint(item, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid value %q: %w", key, item, err)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func oneOf(key, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}
