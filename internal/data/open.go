package data

import (
	"fmt"
	"strings"
	"time"
)

// Options selects and configures a Provider.
type Options struct {
	Name       string // yahoo | massive | csv | synthetic
	APIKey     string
	BaseURL    string
	DataDir    string // csv only
	Fallback   string // provider consulted by csv when a file is missing
	Seed       int64  // synthetic only
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// Open builds the provider named by opts.Name. An empty name selects yahoo.
func Open(opts Options) (Provider, error) {
	upCfg := UpstreamConfig{Timeout: opts.Timeout, RatePerSec: opts.RatePerSec, Burst: opts.Burst}

	switch strings.ToLower(strings.TrimSpace(opts.Name)) {
	case "", "yahoo":
		return NewYahooDataProvider(opts.BaseURL, upCfg), nil

	case "massive", "polygon":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires an API key", opts.Name)
		}
		return NewMassiveDataProvider(opts.APIKey, opts.BaseURL, upCfg), nil

	case "synthetic":
		return NewSyntheticProvider(opts.Seed), nil

	case "csv", "local":
		if opts.DataDir == "" {
			return nil, fmt.Errorf("provider %q requires a data directory", opts.Name)
		}
		var secondary Provider
		if opts.Fallback != "" {
			fb := opts
			fb.Name, fb.Fallback = opts.Fallback, ""
			if n := strings.ToLower(fb.Name); n == "csv" || n == "local" {
				return nil, fmt.Errorf("csv provider cannot fall back to itself")
			}
			p, err := Open(fb)
			if err != nil {
				return nil, fmt.Errorf("fallback provider: %w", err)
			}
			secondary = p
		}
		return NewLocalFileDataProvider(opts.DataDir, secondary), nil
	}

	return nil, fmt.Errorf("unknown data provider %q", opts.Name)
}
