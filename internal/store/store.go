// Package store journals completed backtest runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/contactkeval/premium-backtest/internal/backtest"
	"github.com/contactkeval/premium-backtest/internal/data"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    created_at   TEXT    NOT NULL,
    ticker       TEXT    NOT NULL,
    strategy     TEXT    NOT NULL,
    cadence      TEXT    NOT NULL,
    parameters   TEXT    NOT NULL,
    params_json  TEXT    NOT NULL,
    samples      INTEGER NOT NULL DEFAULT 0,
    trade_count  INTEGER NOT NULL DEFAULT 0,
    total_profit REAL    NOT NULL DEFAULT 0,
    skipped_json TEXT    NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS trades (
    run_id           TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq              INTEGER NOT NULL,
    trade_date       TEXT    NOT NULL,
    expiration       TEXT    NOT NULL,
    days_to_expiry   INTEGER NOT NULL,
    stock_price      REAL    NOT NULL,
    credit           REAL    NOT NULL,
    settlement_date  TEXT    NOT NULL,
    settlement_price REAL    NOT NULL,
    itm              INTEGER NOT NULL DEFAULT 0,
    outcome          TEXT    NOT NULL,
    pnl              REAL    NOT NULL,
    legs_json        TEXT    NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker, id DESC);
`

// RunSummary is one journaled run without its trades.
type RunSummary struct {
	ID          string                      `json:"id"`
	CreatedAt   time.Time                   `json:"created_at"`
	Ticker      string                      `json:"ticker"`
	Strategy    string                      `json:"strategy"`
	Cadence     string                      `json:"cadence"`
	Parameters  string                      `json:"parameters"`
	Params      backtest.Params             `json:"params"`
	Samples     int                         `json:"samples"`
	TradeCount  int                         `json:"trade_count"`
	TotalProfit float64                     `json:"total_profit"`
	Skipped     map[backtest.SkipReason]int `json:"skipped"`
}

// Store is a SQLite run journal, safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the journal at dsn and applies the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store.Open: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun journals res with its trades in one transaction and returns the new run id.
func (s *Store) SaveRun(ctx context.Context, res *backtest.Result) (string, error) {
	now := s.now().UTC()
	id := newID(now)

	paramsJSON, err := json.Marshal(res.Params)
	if err != nil {
		return "", fmt.Errorf("store.SaveRun: params: %w", err)
	}
	skippedJSON, err := json.Marshal(res.Skipped)
	if err != nil {
		return "", fmt.Errorf("store.SaveRun: skipped: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, ticker, strategy, cadence, parameters, params_json,
		                  samples, trade_count, total_profit, skipped_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, now.Format(time.RFC3339Nano), res.Ticker, res.Params.Strategy, string(res.Params.Cadence),
		res.Parameters(), string(paramsJSON), res.Samples, res.TradeCount(), res.TotalProfit, string(skippedJSON),
	); err != nil {
		return "", fmt.Errorf("store.SaveRun: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, seq, trade_date, expiration, days_to_expiry, stock_price, credit,
		                    settlement_date, settlement_price, itm, outcome, pnl, legs_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("store.SaveRun: prepare: %w", err)
	}
	defer stmt.Close()

	for i, t := range res.Trades {
		legs, err := json.Marshal(t.Legs)
		if err != nil {
			return "", fmt.Errorf("store.SaveRun: legs: %w", err)
		}
		itm := 0
		if t.ITM {
			itm = 1
		}
		if _, err := stmt.ExecContext(ctx,
			id, i, t.Date.Format(data.DateLayout), t.Expiration, t.DaysToExpiry, t.StockPrice, t.Credit,
			t.SettlementDate.Format(data.DateLayout), t.SettlementPrice, itm, t.Outcome, t.PnL, string(legs),
		); err != nil {
			return "", fmt.Errorf("store.SaveRun: insert trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store.SaveRun: commit: %w", err)
	}
	return id, nil
}

// ErrNotFound is returned for an unknown run id.
var ErrNotFound = errors.New("run not found")

const selectRuns = `SELECT id, created_at, ticker, strategy, cadence, parameters, params_json,
       samples, trade_count, total_profit, skipped_json
FROM runs`

// GetRun returns one run summary by id.
func (s *Store) GetRun(ctx context.Context, id string) (RunSummary, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("store.GetRun: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunSummary{}, fmt.Errorf("store.GetRun: %w", err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A ticker filters by symbol.
func (s *Store) ListRuns(ctx context.Context, ticker string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	q := selectRuns
	args := []any{}
	if ticker != "" {
		q += ` WHERE ticker = ?`
		args = append(args, ticker)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store.ListRuns: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store.ListRuns: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunSummary, error) {
	var (
		r                        RunSummary
		created, params, skipped string
	)
	if err := sc.Scan(&r.ID, &created, &r.Ticker, &r.Strategy, &r.Cadence, &r.Parameters, &params,
		&r.Samples, &r.TradeCount, &r.TotalProfit, &skipped); err != nil {
		return r, err
	}
	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return r, fmt.Errorf("run %s created_at: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return r, fmt.Errorf("run %s params: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(skipped), &r.Skipped); err != nil {
		return r, fmt.Errorf("run %s skipped: %w", r.ID, err)
	}
	return r, nil
}

// Trades returns the journaled trades of one run in entry order.
func (s *Store) Trades(ctx context.Context, runID string) ([]backtest.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.strategy, t.trade_date, t.expiration, t.days_to_expiry, t.stock_price, t.credit,
		       t.settlement_date, t.settlement_price, t.itm, t.outcome, t.pnl, t.legs_json
		FROM trades t JOIN runs r ON r.id = t.run_id
		WHERE t.run_id = ?
		ORDER BY t.seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("store.Trades: %w", err)
	}
	defer rows.Close()

	var out []backtest.Trade
	for rows.Next() {
		var (
			t                      backtest.Trade
			date, settleDate, legs string
			itm                    int
		)
		if err := rows.Scan(&t.Strategy, &date, &t.Expiration, &t.DaysToExpiry, &t.StockPrice, &t.Credit,
			&settleDate, &t.SettlementPrice, &itm, &t.Outcome, &t.PnL, &legs); err != nil {
			return nil, fmt.Errorf("store.Trades: scan: %w", err)
		}
		if t.Date, err = data.ParseDate(date); err != nil {
			return nil, fmt.Errorf("store.Trades: trade_date: %w", err)
		}
		if t.SettlementDate, err = data.ParseDate(settleDate); err != nil {
			return nil, fmt.Errorf("store.Trades: settlement_date: %w", err)
		}
		if err := json.Unmarshal([]byte(legs), &t.Legs); err != nil {
			return nil, fmt.Errorf("store.Trades: legs: %w", err)
		}
		t.ITM = itm == 1
		out = append(out, t)
	}
	return out, rows.Err()
}
