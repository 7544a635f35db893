package testutil

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/contactkeval/premium-backtest/internal/data"
)

// FixtureProvider is an in-memory data.Provider with call counting.
// Set Err (or one of the per-method errors) to make calls fail.
type FixtureProvider struct {
	Bars        []data.Bar
	Expirations []string
	Chains      map[string]*data.Chain

	Err      error
	BarsErr  error
	ChainErr error

	mu    sync.Mutex
	calls map[string]int
}

func (f *FixtureProvider) count(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
}

// Calls reports how many times method was invoked.
func (f *FixtureProvider) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FixtureProvider) GetBars(ctx context.Context, _ string, from, to time.Time) ([]data.Bar, error) {
	f.count("GetBars")
	if err := firstErr(ctx.Err(), f.BarsErr, f.Err); err != nil {
		return nil, err
	}
	from, to = data.DayOf(from), data.DayOf(to)
	var out []data.Bar
	for _, b := range f.Bars {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *FixtureProvider) GetExpirations(ctx context.Context, _ string) ([]string, error) {
	f.count("GetExpirations")
	if err := firstErr(ctx.Err(), f.Err); err != nil {
		return nil, err
	}
	return append([]string(nil), f.Expirations...), nil
}

func (f *FixtureProvider) GetChain(ctx context.Context, _ string, expiration string) (*data.Chain, error) {
	f.count("GetChain")
	if err := firstErr(ctx.Err(), f.ChainErr, f.Err); err != nil {
		return nil, err
	}
	if c, ok := f.Chains[expiration]; ok {
		return c, nil
	}
	return &data.Chain{Expiration: expiration}, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Day is a UTC calendar date.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailyBars returns one bar per calendar day in [from, to], weekends excluded,
// with closes from closeAt.
func DailyBars(from, to time.Time, closeAt func(time.Time) float64) []data.Bar {
	var out []data.Bar
	for d := data.DayOf(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		c := closeAt(d)
		out = append(out, data.Bar{Date: d, Open: c, High: c, Low: c, Close: c})
	}
	return out
}

// Flat returns a closeAt func with a constant price.
func Flat(price float64) func(time.Time) float64 {
	return func(time.Time) float64 { return price }
}

// Quote builds a fully populated contract quote.
func Quote(strike, bid, ask, iv float64) data.ContractQuote {
	return data.ContractQuote{Strike: strike, Bid: bid, Ask: ask, ImpliedVol: iv}
}

// NaN is shorthand for a missing quote field.
var NaN = math.NaN()
