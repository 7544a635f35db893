// Package report renders backtest results as files and console tables.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/contactkeval/premium-backtest/internal/backtest"
	"github.com/contactkeval/premium-backtest/internal/data"
	"github.com/contactkeval/premium-backtest/internal/store"
)

// Summary is the JSON document written next to the trade CSV. Its shape
// matches the HTTP response plus the full trade records.
type Summary struct {
	Ticker      string                      `json:"ticker"`
	TradeCount  int                         `json:"trade_count"`
	TotalProfit float64                     `json:"total_profit"`
	TradeLog    []string                    `json:"trade_log"`
	Parameters  string                      `json:"parameters"`
	Samples     int                         `json:"samples"`
	Skipped     map[backtest.SkipReason]int `json:"skipped"`
	Trades      []backtest.Trade            `json:"trades"`
}

func NewSummary(res *backtest.Result) Summary {
	return Summary{
		Ticker:      res.Ticker,
		TradeCount:  res.TradeCount(),
		TotalProfit: res.TotalProfit,
		TradeLog:    res.TradeLog(),
		Parameters:  res.Parameters(),
		Samples:     res.Samples,
		Skipped:     res.Skipped,
		Trades:      res.Trades,
	}
}

// WriteJSON writes trades.json into outdir.
func WriteJSON(res *backtest.Result, outdir string) error {
	b, err := json.MarshalIndent(NewSummary(res), "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal result: %w", err)
	}
	return os.WriteFile(filepath.Join(outdir, "trades.json"), b, 0o644)
}

var csvHeader = []string{
	"date", "strategy", "stock_price", "expiration", "days_to_expiry", "credit",
	"settlement_date", "settlement_price", "itm", "outcome", "pnl", "legs_json",
}

// WriteCSV writes trades.csv into outdir, one row per trade.
func WriteCSV(trades []backtest.Trade, outdir string) error {
	f, err := os.Create(filepath.Join(outdir, "trades.csv"))
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer f.Close()
	if err := writeCSV(f, trades); err != nil {
		return err
	}
	return f.Close()
}

func writeCSV(out io.Writer, trades []backtest.Trade) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, t := range trades {
		legs, err := json.Marshal(t.Legs)
		if err != nil {
			return fmt.Errorf("report: legs: %w", err)
		}
		row := []string{
			t.Date.Format(data.DateLayout),
			t.Strategy,
			money(t.StockPrice),
			t.Expiration,
			strconv.Itoa(t.DaysToExpiry),
			money(t.Credit),
			t.SettlementDate.Format(data.DateLayout),
			money(t.SettlementPrice),
			strconv.FormatBool(t.ITM),
			t.Outcome,
			money(t.PnL),
			string(legs),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("report: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteTable prints the trades of res followed by a totals line.
func WriteTable(out io.Writer, res *backtest.Result) {
	table := tablewriter.NewWriter(out)
	table.Header("#", "Date", "Spot", "Expiration", "DTE", "Strikes", "Credit", "Settle", "Outcome", "P&L")
	for i, t := range res.Trades {
		table.Append(
			strconv.Itoa(i+1),
			t.Date.Format(data.DateLayout),
			money(t.StockPrice),
			t.Expiration,
			strconv.Itoa(t.DaysToExpiry),
			strikes(t.Legs),
			money(t.Credit),
			money(t.SettlementPrice),
			t.Outcome,
			money(t.PnL),
		)
	}
	table.Render()

	fmt.Fprintf(out, "%s %s: %d trades over %d samples, total P&L $%.2f\n",
		res.Ticker, res.Parameters(), res.TradeCount(), res.Samples, res.TotalProfit)
	for _, reason := range []backtest.SkipReason{backtest.SkipNoExpiration, backtest.SkipNoContracts, backtest.SkipNonPositiveCredit} {
		if n := res.Skipped[reason]; n > 0 {
			fmt.Fprintf(out, "  skipped %s: %d\n", reason, n)
		}
	}
}

// WriteRuns prints journaled runs, newest first.
func WriteRuns(out io.Writer, runs []store.RunSummary) {
	table := tablewriter.NewWriter(out)
	table.Header("ID", "Created", "Ticker", "Strategy", "Cadence", "Trades", "P&L")
	for _, r := range runs {
		table.Append(
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Ticker,
			r.Strategy,
			r.Cadence,
			strconv.Itoa(r.TradeCount),
			money(r.TotalProfit),
		)
	}
	table.Render()
}

func strikes(legs []backtest.Leg) string {
	s := ""
	for i, l := range legs {
		if i > 0 {
			s += "/"
		}
		s += strconv.FormatFloat(l.Strike, 'f', -1, 64)
	}
	return s
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
