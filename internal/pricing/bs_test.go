package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaKnownValues(t *testing.T) {
	// d1 = (ln(1) + (0.05 + 0.02) * 1) / 0.2 = 0.35, N(0.35) = 0.636831
	call, ok := Delta(true, 100, 100, 1, 0.05, 0.2)
	require.True(t, ok)
	assert.InDelta(t, 0.636831, call, 1e-5)

	put, ok := Delta(false, 100, 100, 1, 0.05, 0.2)
	require.True(t, ok)
	assert.InDelta(t, -0.363169, put, 1e-5)
	assert.InDelta(t, 1.0, call-put, 1e-12)
}

func TestDeltaRanges(t *testing.T) {
	for _, k := range []float64{60, 90, 100, 110, 150} {
		c, ok := Delta(true, 100, k, YearFraction(45), 0.05, 0.35)
		require.True(t, ok)
		assert.Greater(t, c, 0.0)
		assert.Less(t, c, 1.0)

		p, ok := Delta(false, 100, k, YearFraction(45), 0.05, 0.35)
		require.True(t, ok)
		assert.Less(t, p, 0.0)
		assert.Greater(t, p, -1.0)
	}

	// deeper OTM calls have smaller delta
	near, _ := Delta(true, 100, 105, YearFraction(30), 0.05, 0.3)
	far, _ := Delta(true, 100, 120, YearFraction(30), 0.05, 0.3)
	assert.Greater(t, near, far)
}

func TestDeltaUndefined(t *testing.T) {
	cases := []struct {
		name             string
		S, K, T, r, sigm float64
	}{
		{"zero vol", 100, 100, 0.1, 0.05, 0},
		{"negative vol", 100, 100, 0.1, 0.05, -0.2},
		{"zero time", 100, 100, 0, 0.05, 0.2},
		{"zero spot", 0, 100, 0.1, 0.05, 0.2},
		{"zero strike", 100, 0, 0.1, 0.05, 0.2},
		{"nan vol", 100, 100, 0.1, 0.05, math.NaN()},
		{"inf spot", math.Inf(1), 100, 0.1, 0.05, 0.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Delta(true, tc.S, tc.K, tc.T, tc.r, tc.sigm)
			assert.False(t, ok)
			_, ok = Delta(false, tc.S, tc.K, tc.T, tc.r, tc.sigm)
			assert.False(t, ok)
		})
	}
}

func TestBlackScholesPutCallParity(t *testing.T) {
	S, K, T, r, sigma := 100.0, 100.0, 45.0/365.0, 0.03, 0.25

	call := BlackScholesPrice(true, S, K, T, r, sigma)
	put := BlackScholesPrice(false, S, K, T, r, sigma)
	require.Greater(t, call, 0.0)

	lhs := call - put
	rhs := S - K*math.Exp(-r*T)
	assert.InDelta(t, rhs, lhs, 1e-9)
}

func TestBlackScholesIntrinsicFallback(t *testing.T) {
	assert.Equal(t, 5.0, BlackScholesPrice(true, 105, 100, 0, 0.05, 0.2))
	assert.Equal(t, 0.0, BlackScholesPrice(true, 95, 100, 0, 0.05, 0.2))
	assert.Equal(t, 5.0, BlackScholesPrice(false, 95, 100, 0.1, 0.05, 0))
}

func TestYearFraction(t *testing.T) {
	assert.InDelta(t, 1.0, YearFraction(365)/(365/365.25), 1e-12)
	assert.Equal(t, 0.0, YearFraction(0))
}
