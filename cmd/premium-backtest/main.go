package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contactkeval/premium-backtest/internal/config"
	"github.com/contactkeval/premium-backtest/internal/logger"
)

var (
	configPath string
	verbose    int
)

var rootCmd = &cobra.Command{
	Use:   "premium-backtest",
	Short: "Backtest option premium-selling strategies",
	Long: `premium-backtest replays covered calls, cash-secured puts and iron condors
over a stock's daily closes and reports the simulated profit of each trade.

Run it as an HTTP service with 'serve', or one-shot from the shell with 'run'.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to YAML config (optional)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "raise log verbosity (-v debug, -vv trace)")
}

// loadConfig reads the config and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Log.Format, os.Stderr)
	level := int(logger.ParseLevel(cfg.Log.Level))
	if verbose > 0 {
		level = max(level, int(logger.Info)+verbose)
	}
	logger.SetVerbosity(level)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
