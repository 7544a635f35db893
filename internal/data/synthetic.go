package data

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/contactkeval/premium-backtest/internal/pricing"
)

// synthEpoch anchors every generated price path, so a given (seed, ticker, date)
// always produces the same close no matter which window is requested.
var synthEpoch = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)

const (
	synthRiskFree = 0.04
	synthBaseVol  = 0.25
)

// synthDataProvider implements Provider with deterministic generated data:
// a seeded random walk of weekday closes, monthly third-Friday expirations
// and a Black-Scholes priced chain around the latest close.
type synthDataProvider struct {
	seed uint64
	now  func() time.Time
}

// NewSyntheticProvider returns a synthetic provider; equal seeds give equal data.
func NewSyntheticProvider(seed int64) *synthDataProvider {
	return &synthDataProvider{seed: uint64(seed), now: time.Now}
}

func (synthDataProv *synthDataProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return synthDataProv.walk(underlying, DayOf(fromDate), DayOf(toDate)), nil
}

// GetExpirations lists third Fridays from three years back to one year ahead.
func (synthDataProv *synthDataProvider) GetExpirations(ctx context.Context, underlying string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := DayOf(synthDataProv.now())
	start := time.Date(now.Year()-3, now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := now.AddDate(1, 0, 0)

	var out []string
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		out = append(out, thirdFriday(m.Year(), m.Month()).Format(DateLayout))
	}
	return out, nil
}

// GetChain prices a strike ladder around the latest close with a mild smile.
// Bid and ask straddle the model price by 3%.
func (synthDataProv *synthDataProvider) GetChain(ctx context.Context, underlying string, expiration string) (*Chain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exp, err := ParseDate(expiration)
	if err != nil {
		return nil, err
	}

	now := DayOf(synthDataProv.now())
	bars := synthDataProv.walk(underlying, now.AddDate(0, 0, -7), now)
	if len(bars) == 0 {
		return &Chain{Expiration: expiration}, nil
	}
	spot := bars[len(bars)-1].Close

	days := int(math.Abs(exp.Sub(now).Hours() / 24))
	if days < 1 {
		days = 1
	}
	T := pricing.YearFraction(days)

	step := 1.0
	switch {
	case spot >= 200:
		step = 5
	case spot >= 50:
		step = 2.5
	}

	chain := &Chain{Expiration: expiration}
	lo := math.Floor(spot*0.7/step) * step
	hi := math.Ceil(spot*1.3/step) * step
	for k := lo; k <= hi+1e-9; k += step {
		if k <= 0 {
			continue
		}
		m := math.Log(k / spot)
		iv := synthBaseVol + 0.4*m*m - 0.05*m
		for _, isCall := range []bool{true, false} {
			px := pricing.BlackScholesPrice(isCall, spot, k, T, synthRiskFree, iv)
			q := ContractQuote{
				Strike:     k,
				Bid:        roundCents(px * 0.97),
				Ask:        roundCents(px * 1.03),
				ImpliedVol: iv,
			}
			if isCall {
				q.Symbol = OptionSymbolFromParts(underlying, exp, "call", k)
				chain.Calls = append(chain.Calls, q)
			} else {
				q.Symbol = OptionSymbolFromParts(underlying, exp, "put", k)
				chain.Puts = append(chain.Puts, q)
			}
		}
	}
	return chain, nil
}

// walk replays the seeded path from synthEpoch and keeps weekdays in [from, to].
func (synthDataProv *synthDataProvider) walk(underlying string, from, to time.Time) []Bar {
	h := fnv.New64a()
	_, _ = h.Write([]byte(underlying))
	rng := rand.New(rand.NewPCG(synthDataProv.seed, h.Sum64()))

	price := 50 + float64(h.Sum64()%250)
	var out []Bar
	for cur := synthEpoch; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday {
			continue
		}
		open := price
		price = math.Max(1, price*(1+rng.NormFloat64()*0.015))
		wick := math.Abs(rng.NormFloat64()) * 0.005 * price
		vol := float64(100_000 + rng.IntN(900_000))
		if cur.Before(from) {
			continue
		}
		out = append(out, Bar{
			Date:  cur,
			Open:  roundCents(open),
			High:  roundCents(math.Max(open, price) + wick),
			Low:   roundCents(math.Min(open, price) - wick),
			Close: roundCents(price),
			Vol:   vol,
		})
	}
	return out
}

func thirdFriday(year int, month time.Month) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+14)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
