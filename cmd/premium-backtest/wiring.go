package main

import (
	"context"
	"strings"

	"github.com/contactkeval/premium-backtest/internal/backtest"
	"github.com/contactkeval/premium-backtest/internal/config"
	"github.com/contactkeval/premium-backtest/internal/data"
	"github.com/contactkeval/premium-backtest/internal/logger"
	"github.com/contactkeval/premium-backtest/internal/store"
)

// openProvider builds the configured provider, wrapped in the configured cache.
// An unreachable Redis leaves the provider uncached.
func openProvider(ctx context.Context, cfg *config.Config) (data.Provider, error) {
	p := cfg.Provider
	prov, err := data.Open(data.Options{
		Name:       p.Name,
		APIKey:     p.APIKey,
		BaseURL:    p.BaseURL,
		DataDir:    p.DataDir,
		Fallback:   p.Fallback,
		Seed:       p.Seed,
		Timeout:    p.Timeout,
		RatePerSec: p.RatePerSec,
		Burst:      p.Burst,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("data provider: %s", p.Name)

	switch strings.ToLower(cfg.Cache.Backend) {
	case "memory":
		logger.Infof("market data cache: memory, ttl %s", cfg.Cache.TTL)
		return data.NewCachedProvider(prov, data.NewMemoryCache(), cfg.Cache.TTL), nil
	case "redis":
		c, err := data.DialRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			logger.Warnf("market data cache disabled: %v", err)
			return prov, nil
		}
		logger.Infof("market data cache: redis %s, ttl %s", cfg.Cache.RedisAddr, cfg.Cache.TTL)
		return data.NewCachedProvider(prov, c, cfg.Cache.TTL), nil
	}
	return prov, nil
}

func newEngine(ctx context.Context, cfg *config.Config) (*backtest.Engine, error) {
	prov, err := openProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return backtest.NewEngine(prov, backtest.Config{LookbackDays: cfg.Backtest.LookbackDays}), nil
}

// openStore returns nil when no journal is configured.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Storage.DSN == "" {
		return nil, nil
	}
	st, err := store.Open(cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}
	logger.Infof("run journal: %s", cfg.Storage.DSN)
	return st, nil
}
