package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/premium-backtest/internal/data"
	"github.com/contactkeval/premium-backtest/internal/pricing"
	"github.com/contactkeval/premium-backtest/internal/testutil"
)

func singleLeg(typ string, strike, premium float64) Position {
	return Position{Legs: []Leg{{Action: "sell", Type: typ, Strike: strike, Price: premium}}, Credit: premium}
}

func condor(sp, sc, lp, lc, credit float64) Position {
	return Position{
		Legs: []Leg{
			{Action: "sell", Type: "put", Strike: sp},
			{Action: "sell", Type: "call", Strike: sc},
			{Action: "buy", Type: "put", Strike: lp},
			{Action: "buy", Type: "call", Strike: lc},
		},
		Credit: credit,
	}
}

func TestCoveredCall_Settle(t *testing.T) {
	ev := coveredCall{}

	// strike 105, entry 100, premium 2, settles at 110: 2*100 + (105-100)*100
	s := ev.Settle(singleLeg("call", 105, 2), 100, 110)
	assert.Equal(t, 700.0, s.PnL)
	assert.True(t, s.ITM)
	assert.Equal(t, "Expired ITM", s.Outcome)

	for _, settle := range []float64{80, 100, 104.99, 105} {
		s = ev.Settle(singleLeg("call", 105, 2), 100, settle)
		assert.Equal(t, 200.0, s.PnL, "OTM keeps exactly the premium at %v", settle)
		assert.Equal(t, "Expired OTM", s.Outcome)
	}
}

func TestCashSecuredPut_Settle(t *testing.T) {
	ev := cashSecuredPut{}

	// strike 95, premium 1.5, settles at 90: 1.5*100 - (95-90)*100
	s := ev.Settle(singleLeg("put", 95, 1.5), 100, 90)
	assert.Equal(t, -350.0, s.PnL)
	assert.True(t, s.ITM)

	for _, settle := range []float64{95, 99, 130} {
		s = ev.Settle(singleLeg("put", 95, 1.5), 100, settle)
		assert.Equal(t, 150.0, s.PnL)
		assert.False(t, s.ITM)
	}
}

func TestIronCondor_Settle(t *testing.T) {
	ev := ironCondor{}

	s := ev.Settle(condor(95, 105, 90, 110, 1.20), 100, 100)
	assert.InDelta(t, 120.0, s.PnL, 1e-9)
	assert.Equal(t, "Expired OTM (Max Profit)", s.Outcome)

	s = ev.Settle(condor(95, 105, 90, 110, 1.20), 100, 111)
	assert.InDelta(t, -380.0, s.PnL, 1e-9)
	assert.Equal(t, "Expired ITM (Max Loss)", s.Outcome)

	// short strikes themselves are outside the profit zone
	assert.Less(t, ev.Settle(condor(95, 105, 90, 110, 1.20), 100, 95).PnL, 0.0)
	assert.Less(t, ev.Settle(condor(95, 105, 90, 110, 1.20), 100, 105).PnL, 0.0)
}

func TestIronCondor_SettleBounds(t *testing.T) {
	ev := ironCondor{}
	// call wing is 7 wide, put wing 5: max loss uses the call side only
	pos := condor(95, 105, 90, 112, 1.35)
	maxProfit := pos.Credit * 100
	maxLoss := -(7*100 - pos.Credit*100)

	for settle := 60.0; settle <= 150; settle += 0.5 {
		pnl := ev.Settle(pos, 100, settle).PnL
		assert.LessOrEqual(t, pnl, maxProfit+1e-9)
		assert.GreaterOrEqual(t, pnl, maxLoss-1e-9)
	}
}

// pricedChain builds a chain for spot 100 at 45 days with model prices.
func pricedChain(strikes []float64, iv float64) *data.Chain {
	T := pricing.YearFraction(45)
	chain := &data.Chain{Expiration: "2025-02-20"}
	for _, k := range strikes {
		c := pricing.BlackScholesPrice(true, 100, k, T, 0.05, iv)
		p := pricing.BlackScholesPrice(false, 100, k, T, 0.05, iv)
		chain.Calls = append(chain.Calls, testutil.Quote(k, Round2(c*0.95), Round2(c*1.05), iv))
		chain.Puts = append(chain.Puts, testutil.Quote(k, Round2(p*0.95), Round2(p*1.05), iv))
	}
	return chain
}

var condorMarket = Market{Spot: 100, Days: 45, RiskFree: 0.05, TargetDelta: 0.3, Width: 5}

func TestIronCondor_Open(t *testing.T) {
	chain := pricedChain([]float64{80, 85, 90, 95, 100, 105, 110, 115, 120}, 0.25)

	pos, skip := ironCondor{}.Open(chain, condorMarket)
	require.Equal(t, SkipNone, skip)
	require.Len(t, pos.Legs, 4)

	sp, _ := pos.leg("sell", "put")
	sc, _ := pos.leg("sell", "call")
	lp, _ := pos.leg("buy", "put")
	lc, _ := pos.leg("buy", "call")

	assert.Less(t, sp.Strike, 100.0)
	assert.Greater(t, sc.Strike, 100.0)
	assert.Equal(t, sp.Strike-5, lp.Strike)
	assert.Equal(t, sc.Strike+5, lc.Strike)
	assert.InDelta(t, sp.Price+sc.Price-lp.Price-lc.Price, pos.Credit, 1e-12)
	assert.Greater(t, pos.Credit, 0.0)
}

func TestIronCondor_OpenSkips(t *testing.T) {
	chain := pricedChain([]float64{90, 95, 100, 105, 110}, 0.25)
	for i := range chain.Calls {
		chain.Calls[i].Ask = 50
	}
	_, skip := ironCondor{}.Open(chain, condorMarket)
	assert.Equal(t, SkipNonPositiveCredit, skip)

	noAsk := pricedChain([]float64{90, 95, 100, 105, 110}, 0.25)
	for i := range noAsk.Puts {
		noAsk.Puts[i].Ask = testutil.NaN
	}
	_, skip = ironCondor{}.Open(noAsk, condorMarket)
	assert.Equal(t, SkipNoContracts, skip)

	// single-leg strategies do not need an ask
	pos, skip := cashSecuredPut{}.Open(noAsk, condorMarket)
	assert.Equal(t, SkipNone, skip)
	assert.Equal(t, pos.Legs[0].Price, pos.Credit)
}

func TestSingleLeg_OpenPicksTargetDelta(t *testing.T) {
	chain := pricedChain([]float64{95, 100, 105, 110, 115}, 0.25)

	pos, skip := coveredCall{}.Open(chain, condorMarket)
	require.Equal(t, SkipNone, skip)
	require.Len(t, pos.Legs, 1)

	want, _ := SelectByDelta(ScoreContracts(chain.Calls, false, 100, 45, 0.05, true), 0.3)
	assert.Equal(t, want.Strike, pos.Legs[0].Strike)
	assert.Equal(t, want.Bid, pos.Credit)
	assert.Equal(t, "sell", pos.Legs[0].Action)
	assert.Equal(t, "call", pos.Legs[0].Type)

	_, skip = coveredCall{}.Open(&data.Chain{}, condorMarket)
	assert.Equal(t, SkipNoContracts, skip)
}

func TestStrategyFor(t *testing.T) {
	for _, name := range []string{"covered_call", "cash_secured_put", " IRON_CONDOR "} {
		ev, err := StrategyFor(name)
		require.NoError(t, err)
		assert.NotEmpty(t, ev.Name())
	}

	_, err := StrategyFor("straddle")
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.Equal(t, []string{CashSecuredPut, CoveredCall, IronCondor}, Strategies())
}
