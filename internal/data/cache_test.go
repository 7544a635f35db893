package data

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider records how often each method reaches the backing store.
type countingProvider struct {
	bars, exps, chains int
	err                error
}

func (c *countingProvider) GetBars(_ context.Context, _ string, from, _ time.Time) ([]Bar, error) {
	c.bars++
	return []Bar{{Date: DayOf(from), Close: 100}}, c.err
}

func (c *countingProvider) GetExpirations(context.Context, string) ([]string, error) {
	c.exps++
	if c.err != nil {
		return nil, c.err
	}
	return []string{"2025-01-17"}, nil
}

func (c *countingProvider) GetChain(_ context.Context, _ string, exp string) (*Chain, error) {
	c.chains++
	if c.err != nil {
		return nil, c.err
	}
	return &Chain{Expiration: exp, Calls: []ContractQuote{{Strike: 100, Bid: 1, Ask: math.NaN(), ImpliedVol: 0.2}}}, nil
}

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache().(*memoryCache)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedProvider_ReadThrough(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, NewMemoryCache(), time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		chain, err := p.GetChain(ctx, "MSFT", "2025-01-17")
		require.NoError(t, err)
		require.Len(t, chain.Calls, 1)
		assert.True(t, Missing(chain.Calls[0].Ask), "NaN survives the cache")

		exps, err := p.GetExpirations(ctx, "MSFT")
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-01-17"}, exps)
	}
	assert.Equal(t, 1, inner.chains)
	assert.Equal(t, 1, inner.exps)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := p.GetBars(ctx, "MSFT", from, from.AddDate(1, 0, 0))
	require.NoError(t, err)
	_, err = p.GetBars(ctx, "MSFT", from.AddDate(0, 0, 1), from.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.bars, "different windows are different keys")
}

func TestCachedProvider_ErrorsAreNotCached(t *testing.T) {
	inner := &countingProvider{err: ErrUpstream}
	p := NewCachedProvider(inner, NewMemoryCache(), time.Hour)

	for i := 0; i < 2; i++ {
		_, err := p.GetExpirations(context.Background(), "MSFT")
		assert.ErrorIs(t, err, ErrUpstream)
	}
	assert.Equal(t, 2, inner.exps)
}

func TestRedisCache_ReadThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &countingProvider{}
	p := NewCachedProvider(inner, NewRedisCache(db), 10*time.Minute)
	ctx := context.Background()

	key := "pbt:exp:MSFT"
	payload, err := encodeGob([]string{"2025-01-17"})
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, payload, 10*time.Minute).SetVal("OK")
	mock.ExpectGet(key).SetVal(string(payload))

	exps, err := p.GetExpirations(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-17"}, exps)

	exps, err = p.GetExpirations(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-17"}, exps)

	assert.Equal(t, 1, inner.exps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_FailureFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &countingProvider{}
	p := NewCachedProvider(inner, NewRedisCache(db), time.Minute)

	want, err := (&countingProvider{}).GetChain(context.Background(), "MSFT", "2025-01-17")
	require.NoError(t, err)
	payload, err := encodeGob(want)
	require.NoError(t, err)

	mock.ExpectGet("pbt:chain:MSFT:2025-01-17").SetErr(errors.New("connection refused"))
	mock.ExpectSet("pbt:chain:MSFT:2025-01-17", payload, time.Minute).SetErr(errors.New("connection refused"))

	chain, err := p.GetChain(context.Background(), "MSFT", "2025-01-17")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-17", chain.Expiration)
	assert.Equal(t, 1, inner.chains)
	assert.NoError(t, mock.ExpectationsWereMet())
}
