package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/premium-backtest/internal/backtest"
	"github.com/contactkeval/premium-backtest/internal/data"
	"github.com/contactkeval/premium-backtest/internal/logger"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

type chartData struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

type backtestResponse struct {
	Ticker      string    `json:"ticker"`
	TradeCount  int       `json:"trade_count"`
	TotalProfit float64   `json:"total_profit"`
	TradeLog    []string  `json:"trade_log"`
	Parameters  string    `json:"parameters"`
	ChartData   chartData `json:"chart_data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	p := paramsFromQuery(r.URL.Query())

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.bt.Run(ctx, p)
	if err != nil {
		status := statusFor(err)
		s.metrics.observeRun(strategyLabel(p.Strategy), resultLabel(status), nil)
		logger.L().Warn().
			Str("request_id", requestID(r.Context())).
			Str("ticker", p.Ticker).
			Str("strategy", p.Strategy).
			Int("status", status).
			Err(err).
			Msg("backtest failed")
		writeError(w, status, err.Error())
		return
	}
	s.metrics.observeRun(res.Params.Strategy, "ok", res)

	if s.journal != nil {
		// a journal failure never fails the request
		id, err := s.journal.SaveRun(r.Context(), res)
		if err != nil {
			logger.Warnf("journal run for %s: %v", res.Ticker, err)
		} else {
			w.Header().Set("X-Run-ID", id)
		}
	}

	labels, values := res.Chart()
	writeJSON(w, http.StatusOK, backtestResponse{
		Ticker:      res.Ticker,
		TradeCount:  res.TradeCount(),
		TotalProfit: res.TotalProfit,
		TradeLog:    res.TradeLog(),
		Parameters:  res.Parameters(),
		ChartData:   chartData{Labels: labels, Data: values},
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "run journal is disabled")
		return
	}
	q := r.URL.Query()
	limit := intOr(q.Get("limit"), defaultRunsLimit)
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	limit = min(limit, maxRunsLimit)

	runs, err := s.journal.ListRuns(r.Context(), data.NormalizeTicker(q.Get("ticker")), limit)
	if err != nil {
		logger.Errorf("list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"journal": s.journal != nil,
	})
}

// paramsFromQuery applies query overrides to the defaults. Unparseable
// numbers keep their default; enum values are checked by the engine.
func paramsFromQuery(q url.Values) backtest.Params {
	p := backtest.DefaultParams()
	if v := strings.TrimSpace(q.Get("ticker")); v != "" {
		p.Ticker = v
	}
	if v := strings.TrimSpace(q.Get("strategy")); v != "" {
		p.Strategy = v
	}
	p.MinExp = intOr(q.Get("min_exp"), p.MinExp)
	p.MaxExp = intOr(q.Get("max_exp"), p.MaxExp)
	p.TargetDelta = floatOr(q.Get("delta"), p.TargetDelta)
	p.RiskFree = floatOr(q.Get("risk_free"), p.RiskFree)
	p.Width = intOr(q.Get("width"), p.Width)
	if v := strings.TrimSpace(q.Get("cadence")); v != "" {
		p.Cadence = backtest.Cadence(v)
	}
	return p
}

func intOr(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

func floatOr(s string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return v
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, backtest.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, data.ErrUpstream), errors.Is(err, data.ErrNoData), errors.Is(err, backtest.ErrNoPriceHistory):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// strategyLabel keeps arbitrary query input out of metric labels.
func strategyLabel(name string) string {
	ev, err := backtest.StrategyFor(name)
	if err != nil {
		return "unknown"
	}
	return ev.Name()
}

func resultLabel(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusBadGateway:
		return "upstream"
	default:
		return "error"
	}
}

// writeJSON encodes v before touching w, so an unencodable value (a
// non-finite float) becomes a 500 instead of a 200 with an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("encode response: %v", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "could not encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logger.Debugf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
