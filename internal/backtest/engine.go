// Package backtest replays simple option-selling strategies over a stock's
// realized closes, pricing entries from a single options chain per expiration.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/contactkeval/premium-backtest/internal/data"
	"github.com/contactkeval/premium-backtest/internal/logger"
)

var (
	// ErrInvalidParams marks a request the engine refuses to run.
	ErrInvalidParams = errors.New("invalid backtest parameters")
	// ErrNoPriceHistory marks a ticker with no usable closes in the lookback window.
	ErrNoPriceHistory = errors.New("no price history")
)

var tickerRe = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-^=]{0,14}$`)

// Params are the per-run inputs.
type Params struct {
	Ticker      string  `json:"ticker"`
	Strategy    string  `json:"strategy"`
	MinExp      int     `json:"min_exp"`
	MaxExp      int     `json:"max_exp"`
	TargetDelta float64 `json:"delta"`
	RiskFree    float64 `json:"risk_free"`
	Width       int     `json:"width"`
	Cadence     Cadence `json:"cadence"`
}

// DefaultParams mirrors the HTTP defaults.
func DefaultParams() Params {
	return Params{
		Ticker:      "MSFT",
		Strategy:    CoveredCall,
		MinExp:      30,
		MaxExp:      90,
		TargetDelta: 0.3,
		RiskFree:    0.05,
		Width:       5,
		Cadence:     CadenceWeekly,
	}
}

// String renders the parameters for the response and the trade journal.
func (p Params) String() string {
	return fmt.Sprintf("strategy=%s, min_exp=%d, max_exp=%d, delta=%s", p.Strategy, p.MinExp, p.MaxExp, formatFloat(p.TargetDelta))
}

// Validate normalizes p in place and rejects values no run can use.
func (p *Params) Validate() error {
	p.Ticker = data.NormalizeTicker(p.Ticker)
	if !tickerRe.MatchString(p.Ticker) {
		return fmt.Errorf("%w: malformed ticker %q", ErrInvalidParams, p.Ticker)
	}
	ev, err := StrategyFor(p.Strategy)
	if err != nil {
		return err
	}
	p.Strategy = ev.Name()

	c, err := ParseCadence(string(p.Cadence))
	if err != nil {
		return err
	}
	p.Cadence = c

	for name, v := range map[string]float64{"delta": p.TargetDelta, "risk_free": p.RiskFree} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidParams, name)
		}
	}
	return nil
}

// Config holds engine-wide settings.
type Config struct {
	LookbackDays int              // price history window, default 730
	Now          func() time.Time // clock, default time.Now
}

func (c Config) withDefaults() Config {
	if c.LookbackDays <= 0 {
		c.LookbackDays = 730
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Engine runs backtests against one market-data provider. It holds no
// per-run state and is safe for concurrent use.
type Engine struct {
	prov data.Provider
	cfg  Config
}

func NewEngine(prov data.Provider, cfg Config) *Engine {
	return &Engine{prov: prov, cfg: cfg.withDefaults()}
}

// Run executes one backtest. Per-sample problems (no expiration in range,
// nothing tradable, no credit) skip that sample; everything else, including
// a panic, fails the whole run and no partial result is returned.
func (e *Engine) Run(ctx context.Context, p Params) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("backtest %s %s panicked: %v", p.Ticker, p.Strategy, r)
			res, err = nil, fmt.Errorf("backtest aborted: %v", r)
		}
	}()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	ev, _ := StrategyFor(p.Strategy)

	started := time.Now()
	to := e.cfg.Now().UTC()
	from := to.AddDate(0, 0, -e.cfg.LookbackDays)

	bars, err := e.prov.GetBars(ctx, p.Ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("price history for %s: %w", p.Ticker, err)
	}
	series := NewPriceSeries(bars)
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w for %s between %s and %s", ErrNoPriceHistory, p.Ticker, from.Format(data.DateLayout), to.Format(data.DateLayout))
	}

	expirations, err := e.prov.GetExpirations(ctx, p.Ticker)
	if err != nil {
		return nil, fmt.Errorf("expirations for %s: %w", p.Ticker, err)
	}
	logger.Debugf("backtest %s: %d closes, %d expirations", p.Ticker, series.Len(), len(expirations))

	res = &Result{
		Ticker:  p.Ticker,
		Params:  p,
		From:    series.Dates[0],
		To:      series.Dates[series.Len()-1],
		Skipped: map[SkipReason]int{},
	}
	chains := map[string]*data.Chain{}
	total := 0.0

	for sample := range Schedule(series, p.Cadence) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Samples++
		day := sample.Date.Format(data.DateLayout)

		exp, days, ok := SelectExpiration(sample.Date, expirations, p.MinExp, p.MaxExp)
		if !ok {
			res.Skipped[SkipNoExpiration]++
			logger.Tracef("%s %s: no expiration in [%d, %d] days", p.Ticker, day, p.MinExp, p.MaxExp)
			continue
		}

		chain, ok := chains[exp]
		if !ok {
			chain, err = e.prov.GetChain(ctx, p.Ticker, exp)
			if err != nil {
				return nil, fmt.Errorf("option chain %s %s: %w", p.Ticker, exp, err)
			}
			if chain == nil {
				chain = &data.Chain{Expiration: exp}
			}
			chains[exp] = chain
		}

		pos, skip := ev.Open(chain, Market{
			Spot:        sample.Close,
			Days:        days,
			RiskFree:    p.RiskFree,
			TargetDelta: p.TargetDelta,
			Width:       float64(p.Width),
		})
		if skip != SkipNone {
			res.Skipped[skip]++
			logger.Debugf("%s %s: skipped (%s) for expiration %s", p.Ticker, day, skip, exp)
			continue
		}

		expDate, _ := data.ParseDate(exp)
		si := series.Nearest(expDate)
		st := ev.Settle(pos, sample.Close, series.Closes[si])

		trade := Trade{
			Strategy:        ev.Name(),
			Date:            sample.Date,
			StockPrice:      sample.Close,
			Expiration:      exp,
			DaysToExpiry:    days,
			Legs:            pos.Legs,
			Credit:          pos.Credit,
			SettlementDate:  series.Dates[si],
			SettlementPrice: series.Closes[si],
			ITM:             st.ITM,
			Outcome:         st.Outcome,
			PnL:             st.PnL,
		}
		total += trade.PnL
		res.Trades = append(res.Trades, trade)
		logger.Tracef("%s", trade.LogLine())
	}

	res.TotalProfit = Round2(total)
	res.Elapsed = time.Since(started)
	logger.Infof("backtest %s %s: %d samples, %d trades, total $%.2f",
		p.Ticker, p.Strategy, res.Samples, len(res.Trades), res.TotalProfit)
	return res, nil
}
