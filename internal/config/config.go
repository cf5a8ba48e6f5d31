package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "UNICHECKER"

	// DefaultOut is the output path template; {from} and {to} are replaced
	// with the scanned block range.
	DefaultOut = "./output/pools_data_{from}_{to}.json"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	Factory         string
	FromBlock       uint64
	ToBlock         uint64
	Window          uint64
	SwapTopic0      string
	CheckingBlocks  map[string]string
	Workers         int
	SkipFailedPools bool
	CacheUnresolved bool
	PoolsFile       string
	Out             string
	PGDSN           string
	PGBatchSize     int
	MaxRetries      int
	RetryBackoff    time.Duration
	LogLevel        string
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("window", uint64(1000))
	v.SetDefault("workers", 8)
	v.SetDefault("skip-failed-pools", false)
	v.SetDefault("cache-unresolved", false)
	v.SetDefault("out", DefaultOut)
	v.SetDefault("pg-batch-size", 1000)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	checkingBlocks, err := getStringMap(v, "checking-blocks")
	if err != nil {
		return Config{}, fmt.Errorf("checking-blocks: %w", err)
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		Factory:         v.GetString("factory"),
		FromBlock:       v.GetUint64("from"),
		ToBlock:         v.GetUint64("to"),
		Window:          v.GetUint64("window"),
		SwapTopic0:      v.GetString("swap-topic0"),
		CheckingBlocks:  checkingBlocks,
		Workers:         v.GetInt("workers"),
		SkipFailedPools: v.GetBool("skip-failed-pools"),
		CacheUnresolved: v.GetBool("cache-unresolved"),
		PoolsFile:       v.GetString("pools-file"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		PGBatchSize:     v.GetInt("pg-batch-size"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// OutputPath expands the {from} and {to} placeholders of Out.
func (c Config) OutputPath(from, to uint64) string {
	return strings.NewReplacer(
		"{from}", fmt.Sprintf("%d", from),
		"{to}", fmt.Sprintf("%d", to),
	).Replace(c.Out)
}

func getStringMap(v *viper.Viper, key string) (map[string]string, error) {
	if !v.IsSet(key) {
		return map[string]string{}, nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed, nil
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out, nil
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case string:
		return parseStringMap(typed)
	default:
		return nil, fmt.Errorf("unsupported value type %T", val)
	}
}

func parseStringMap(input string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(input, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid entry %q: want key=value", pair)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			return nil, fmt.Errorf("invalid entry %q: empty key or value", pair)
		}
		out[key] = value
	}
	return out, nil
}
