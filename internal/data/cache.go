package data

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contactkeval/premium-backtest/internal/logger"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type memoryCache struct {
	mu  sync.Mutex
	m   map[string]cacheEntry
	now func() time.Time
}

type cacheEntry struct {
	b   []byte
	exp time.Time
}

// NewMemoryCache returns a process-local cache.
func NewMemoryCache() Cache {
	return &memoryCache{m: make(map[string]cacheEntry), now: time.Now}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		return nil, false, nil
	}
	return e.b, true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := cacheEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.m[key] = e
	return nil
}

type redisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

// DialRedisCache connects to addr and verifies the connection with PING.
func DialRedisCache(ctx context.Context, addr, password string, db int) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &redisCache{client: client}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, val, ttl).Err()
}

// cachedProvider is a read-through Provider decorator. Cache failures are
// logged and fall through to the wrapped provider; they never fail a call.
type cachedProvider struct {
	inner Provider
	cache Cache
	ttl   time.Duration
}

const cacheKeyPrefix = "pbt:"

// NewCachedProvider wraps p so repeated lookups are served from c for ttl.
func NewCachedProvider(p Provider, c Cache, ttl time.Duration) Provider {
	return &cachedProvider{inner: p, cache: c, ttl: ttl}
}

func (cp *cachedProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	key := cacheKeyPrefix + "bars:" + underlying + ":" + fromDate.Format(DateLayout) + ":" + toDate.Format(DateLayout)
	return readThrough(ctx, cp, key, func() ([]Bar, error) {
		return cp.inner.GetBars(ctx, underlying, fromDate, toDate)
	})
}

func (cp *cachedProvider) GetExpirations(ctx context.Context, underlying string) ([]string, error) {
	key := cacheKeyPrefix + "exp:" + underlying
	return readThrough(ctx, cp, key, func() ([]string, error) {
		return cp.inner.GetExpirations(ctx, underlying)
	})
}

func (cp *cachedProvider) GetChain(ctx context.Context, underlying string, expiration string) (*Chain, error) {
	key := cacheKeyPrefix + "chain:" + underlying + ":" + expiration
	return readThrough(ctx, cp, key, func() (*Chain, error) {
		return cp.inner.GetChain(ctx, underlying, expiration)
	})
}

func readThrough[T any](ctx context.Context, cp *cachedProvider, key string, load func() (T, error)) (T, error) {
	if b, ok, err := cp.cache.Get(ctx, key); err != nil {
		logger.Warnf("cache get %s: %v", key, err)
	} else if ok {
		var v T
		if err := decodeGob(b, &v); err == nil {
			logger.Tracef("cache hit %s", key)
			return v, nil
		}
		logger.Warnf("cache entry %s undecodable, reloading", key)
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	b, err := encodeGob(v)
	if err != nil {
		logger.Warnf("cache encode %s: %v", key, err)
		return v, nil
	}
	if err := cp.cache.Set(ctx, key, b, cp.ttl); err != nil {
		logger.Warnf("cache set %s: %v", key, err)
	}
	return v, nil
}

// gob keeps NaN quote fields intact, which JSON cannot.
func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, out any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(out)
}
