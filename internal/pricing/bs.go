package pricing

import (
	"math"
)

// DaysPerYear converts calendar day counts into Black-Scholes time.
const DaysPerYear = 365.25

// YearFraction returns days / 365.25.
func YearFraction(days int) float64 {
	return float64(days) / DaysPerYear
}

// BlackScholesPrice calculates the price of a European option using the Black-Scholes model.
//
// Parameters:
//   - isCall: true for call option, false for put option
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual)
//   - sigma: volatility of the underlying asset (annual, as a decimal)
//
// Returns:
//
//	The theoretical price of the option. If time to expiry or volatility is zero or negative,
//	returns the intrinsic value of the option.
func BlackScholesPrice(
	isCall bool,
	S float64, // spot
	K float64, // strike
	T float64, // time to expiry in years
	r float64, // risk-free rate
	sigma float64, // volatility
) float64 {

	if T <= 0 || sigma <= 0 {
		if isCall {
			return math.Max(0, S-K)
		}
		return math.Max(0, K-S)
	}

	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	d2 := d1 - sigma*math.Sqrt(T)

	if isCall {
		return S*normCDF(d1) - K*math.Exp(-r*T)*normCDF(d2)
	}
	return K*math.Exp(-r*T)*normCDF(-d2) - S*normCDF(-d1)
}

// Delta returns the analytical Black-Scholes delta of a European option.
//
// Call delta is N(d1) and lies in (0, 1); put delta is N(d1)-1 and lies in (-1, 0).
// The second return value is false when the formula is undefined for the inputs:
// non-positive volatility, time, spot or strike, any non-finite input, or a
// non-finite result. It never panics.
func Delta(isCall bool, S, K, T, r, sigma float64) (float64, bool) {
	for _, v := range []float64{S, K, T, r, sigma} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
	}
	if sigma <= 0 || T <= 0 || S <= 0 || K <= 0 {
		return 0, false
	}

	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	if math.IsNaN(d1) {
		return 0, false
	}

	delta := normCDF(d1)
	if !isCall {
		delta -= 1
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, false
	}
	return delta, true
}

// normCDF computes the cumulative distribution function of the standard normal distribution
// using the error function.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}
