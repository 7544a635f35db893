package backtest

import (
	"math"

	"github.com/contactkeval/premium-backtest/internal/data"
	"github.com/contactkeval/premium-backtest/internal/pricing"
)

// ScoredContract is a tradable quote with its model delta.
type ScoredContract struct {
	data.ContractQuote
	Delta float64
}

// ScoreContracts filters one side of a chain down to tradable quotes and
// attaches a Black-Scholes delta to each. Filtering happens in this order:
//
//  1. drop quotes missing implied vol, strike or bid (or ask, when requireAsk)
//  2. drop quotes with non-positive implied vol or bid
//  3. drop quotes whose delta is undefined
//
// Input order is preserved.
func ScoreContracts(quotes []data.ContractQuote, requireAsk bool, spot float64, days int, riskFree float64, isCall bool) []ScoredContract {
	T := pricing.YearFraction(days)

	out := make([]ScoredContract, 0, len(quotes))
	for _, q := range quotes {
		if data.Missing(q.ImpliedVol) || data.Missing(q.Strike) || data.Missing(q.Bid) {
			continue
		}
		if requireAsk && data.Missing(q.Ask) {
			continue
		}
		if q.ImpliedVol <= 0 || q.Bid <= 0 {
			continue
		}
		d, ok := pricing.Delta(isCall, spot, q.Strike, T, riskFree, q.ImpliedVol)
		if !ok {
			continue
		}
		out = append(out, ScoredContract{ContractQuote: q, Delta: d})
	}
	return out
}

// SelectByDelta returns the contract whose |delta| is closest to |target|.
// The first contract wins ties.
func SelectByDelta(scored []ScoredContract, target float64) (ScoredContract, bool) {
	target = math.Abs(target)
	best, bestDist := -1, math.Inf(1)
	for i, c := range scored {
		if dist := math.Abs(math.Abs(c.Delta) - target); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return ScoredContract{}, false
	}
	return scored[best], true
}

// NearestStrike returns the contract whose strike is closest to strike.
// The first contract wins ties.
func NearestStrike(scored []ScoredContract, strike float64) (ScoredContract, bool) {
	best, bestDist := -1, math.Inf(1)
	for i, c := range scored {
		if dist := math.Abs(c.Strike - strike); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return ScoredContract{}, false
	}
	return scored[best], true
}
