package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/contactkeval/premium-backtest/internal/backtest"
)

// metrics holds the collectors exported on /metrics. Each Server owns its
// registry so tests can build many servers in one process.
type metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	trades      *prometheus.CounterVec
	skipped     *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premium_backtest_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premium_backtest_runs_total",
				Help: "Backtest runs by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "premium_backtest_run_duration_seconds",
				Help:    "Wall time of a backtest run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"strategy"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premium_backtest_trades_total",
				Help: "Simulated trades by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premium_backtest_skipped_samples_total",
				Help: "Sample dates that produced no trade, by reason",
			},
			[]string{"reason"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.requests,
		m.runs,
		m.runDuration,
		m.trades,
		m.skipped,
	)
	return m
}

func (m *metrics) observeRun(strategy, result string, res *backtest.Result) {
	m.runs.WithLabelValues(strategy, result).Inc()
	if res == nil {
		return
	}
	m.runDuration.WithLabelValues(strategy).Observe(res.Elapsed.Seconds())
	for _, t := range res.Trades {
		m.trades.WithLabelValues(strategy, t.Outcome).Inc()
	}
	for reason, n := range res.Skipped {
		m.skipped.WithLabelValues(string(reason)).Add(float64(n))
	}
}
