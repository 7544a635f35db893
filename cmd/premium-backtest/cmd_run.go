package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/contactkeval/premium-backtest/internal/backtest"
	"github.com/contactkeval/premium-backtest/internal/logger"
	"github.com/contactkeval/premium-backtest/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backtest and print the trades",
	Long: `Run one backtest from the command line.

Examples:
  premium-backtest run --ticker SPY --strategy iron_condor --width 10
  premium-backtest run --ticker AAPL --strategy cash_secured_put --delta 0.2 --out reports/aapl
  premium-backtest run --provider synthetic --cadence monthly --save`,
	RunE: runRun,
}

var (
	runParams   = backtest.DefaultParams()
	runCadence  string
	runProvider string
	runOutDir   string
	runSave     bool
	runTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&runParams.Ticker, "ticker", runParams.Ticker, "underlying symbol")
	f.StringVar(&runParams.Strategy, "strategy", runParams.Strategy, "covered_call | cash_secured_put | iron_condor")
	f.IntVar(&runParams.MinExp, "min-exp", runParams.MinExp, "minimum days to expiration")
	f.IntVar(&runParams.MaxExp, "max-exp", runParams.MaxExp, "maximum days to expiration")
	f.Float64Var(&runParams.TargetDelta, "delta", runParams.TargetDelta, "target absolute delta")
	f.Float64Var(&runParams.RiskFree, "risk-free", runParams.RiskFree, "annual risk-free rate")
	f.IntVar(&runParams.Width, "width", runParams.Width, "iron condor wing width")
	f.StringVar(&runCadence, "cadence", string(runParams.Cadence), "weekly | monthly")
	f.StringVar(&runProvider, "provider", "", "data provider (overrides provider.name)")
	f.StringVar(&runOutDir, "out", "", "write trades.json and trades.csv into this directory")
	f.BoolVar(&runSave, "save", false, "journal the run (needs storage.dsn)")
	f.DurationVar(&runTimeout, "timeout", 0, "abort the run after this long (0 uses server.request_timeout)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runProvider != "" {
		cfg.Provider.Name = runProvider
	}
	if runTimeout <= 0 {
		runTimeout = cfg.Server.RequestTimeout
	}

	eng, err := newEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	p := runParams
	p.Cadence = backtest.Cadence(runCadence)

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	res, err := eng.Run(ctx, p)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	report.WriteTable(cmd.OutOrStdout(), res)

	if runOutDir != "" {
		if err := os.MkdirAll(runOutDir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
		if err := report.WriteJSON(res, runOutDir); err != nil {
			return err
		}
		if err := report.WriteCSV(res.Trades, runOutDir); err != nil {
			return err
		}
		logger.Infof("wrote %d trades to %s", res.TradeCount(), runOutDir)
	}

	if runSave {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("--save needs storage.dsn in the config")
		}
		defer st.Close()
		id, err := st.SaveRun(ctx, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved run %s\n", id)
	}
	return nil
}
