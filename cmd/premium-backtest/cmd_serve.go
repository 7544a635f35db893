package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contactkeval/premium-backtest/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve GET /backtest over HTTP",
	Long: `Start the HTTP service. Routes:

  GET /backtest   run one backtest (ticker, strategy, min_exp, max_exp, delta,
                  risk_free, width, cadence)
  GET /runs       recent journaled runs (needs storage.dsn)
  GET /health     liveness
  GET /metrics    Prometheus metrics`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	var journal server.Journal
	if st != nil {
		defer st.Close()
		journal = st
	}

	srv := server.New(eng, journal, server.Config{
		Addr:           cfg.Server.Addr,
		RequestTimeout: cfg.Server.RequestTimeout,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	})
	return srv.ListenAndServe(ctx)
}
