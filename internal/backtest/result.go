package backtest

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/contactkeval/premium-backtest/internal/data"
)

// Trade is one simulated position from entry to expiration.
type Trade struct {
	Strategy        string    `json:"strategy"`
	Date            time.Time `json:"date"`
	StockPrice      float64   `json:"stock_price"`
	Expiration      string    `json:"expiration"`
	DaysToExpiry    int       `json:"days_to_expiry"`
	Legs            []Leg     `json:"legs"`
	Credit          float64   `json:"credit"` // per share
	SettlementDate  time.Time `json:"settlement_date"`
	SettlementPrice float64   `json:"settlement_price"`
	ITM             bool      `json:"itm"`
	Outcome         string    `json:"outcome"`
	PnL             float64   `json:"pnl"`
}

// LogLine renders the trade as a single human readable line.
func (t Trade) LogLine() string {
	day := t.Date.Format(data.DateLayout)
	if t.Strategy == IronCondor {
		return fmt.Sprintf("[%s] Trade: Sold Iron Condor on %s for $%.2f credit. Final Profit: $%.2f. Outcome: %s",
			day, t.Expiration, t.Credit*contractMultiplier, t.PnL, t.Outcome)
	}
	return fmt.Sprintf("[%s] Trade: Sold %s on %s for $%.2f premium. Final Profit: $%.2f. Outcome: %s",
		day, t.Strategy, t.Expiration, t.Credit, t.PnL, t.Outcome)
}

// Result is a completed backtest run.
type Result struct {
	Ticker      string             `json:"ticker"`
	Params      Params             `json:"params"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	Samples     int                `json:"samples"`
	Trades      []Trade            `json:"trades"`
	TotalProfit float64            `json:"total_profit"`
	Skipped     map[SkipReason]int `json:"skipped"`
	Elapsed     time.Duration      `json:"elapsed"`
}

func (r *Result) TradeCount() int { return len(r.Trades) }

// TradeLog returns one LogLine per trade, in trade order.
func (r *Result) TradeLog() []string {
	out := make([]string, len(r.Trades))
	for i, t := range r.Trades {
		out[i] = t.LogLine()
	}
	return out
}

// Chart returns sample-date labels and per-trade P&L rounded to cents.
func (r *Result) Chart() (labels []string, values []float64) {
	labels = make([]string, len(r.Trades))
	values = make([]float64, len(r.Trades))
	for i, t := range r.Trades {
		labels[i] = t.Date.Format(data.DateLayout)
		values[i] = Round2(t.PnL)
	}
	return labels, values
}

// Parameters summarizes the run inputs.
func (r *Result) Parameters() string {
	return r.Params.String()
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatFloat prints integral values with a trailing ".0" (0.3 -> "0.3", 1 -> "1.0").
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		s += ".0"
	}
	return s
}
