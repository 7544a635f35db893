package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/contactkeval/premium-backtest/internal/backtest"
	"github.com/contactkeval/premium-backtest/internal/data"
	"github.com/contactkeval/premium-backtest/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled runs",
	Long: `List recent runs from the journal, newest first. With --run, print the
trades of one run instead.`,
	RunE: runHistory,
}

var (
	historyLimit  int
	historyTicker string
	historyRunID  string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")
	historyCmd.Flags().StringVar(&historyTicker, "ticker", "", "only runs for this symbol")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "show the trades of this run id")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("no run journal configured (storage.dsn)")
	}
	defer st.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if historyRunID == "" {
		runs, err := st.ListRuns(ctx, data.NormalizeTicker(historyTicker), historyLimit)
		if err != nil {
			return err
		}
		report.WriteRuns(out, runs)
		return nil
	}

	run, err := st.GetRun(ctx, historyRunID)
	if err != nil {
		return err
	}
	trades, err := st.Trades(ctx, historyRunID)
	if err != nil {
		return err
	}
	report.WriteTable(out, &backtest.Result{
		Ticker:      run.Ticker,
		Params:      run.Params,
		Samples:     run.Samples,
		Trades:      trades,
		TotalProfit: run.TotalProfit,
		Skipped:     run.Skipped,
	})
	return nil
}
