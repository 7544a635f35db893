// Package config loads service settings from YAML, an optional .env file
// and environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	Storage  StorageConfig  `yaml:"storage"`
	Backtest BacktestConfig `yaml:"backtest"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`            // listen address, e.g. ":5000"
	RequestTimeout time.Duration `yaml:"request_timeout"` // per backtest request
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type ProviderConfig struct {
	Name       string        `yaml:"name"` // yahoo | massive | csv | synthetic
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	DataDir    string        `yaml:"data_dir"`
	Fallback   string        `yaml:"fallback"`
	Seed       int64         `yaml:"seed"`
	Timeout    time.Duration `yaml:"timeout"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Burst      int           `yaml:"burst"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // none | memory | redis
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite path or ":memory:"; empty disables the run journal
}

type BacktestConfig struct {
	LookbackDays int `yaml:"lookback_days"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // error | warn | info | debug | trace
	Format string `yaml:"format"` // console | json
}

// Load reads path (optional: an empty path or a missing file yields defaults),
// then .env, then the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	setDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BACKTEST_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	// MASSIVE_API_KEY wins over the legacy POLYGON_API_KEY.
	for _, k := range []string{"MASSIVE_API_KEY", "POLYGON_API_KEY"} {
		if v := os.Getenv(k); v != "" {
			cfg.Provider.APIKey = v
			break
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
		if cfg.Cache.Backend == "" {
			cfg.Cache.Backend = "redis"
		}
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("config: HTTP_PORT %q is not a port number", v)
		}
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5000"
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 2 * time.Minute
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = cfg.Server.RequestTimeout + 10*time.Second
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "yahoo"
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "none"
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 15 * time.Minute
	}
	if cfg.Backtest.LookbackDays <= 0 {
		cfg.Backtest.LookbackDays = 730
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate rejects combinations that cannot start.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Cache.Backend) {
	case "none", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("config: cache.backend redis needs cache.redis_addr or REDIS_ADDR")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}
