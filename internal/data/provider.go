// Package data provides market data provider implementations.
//
// A Provider supplies the three things a backtest needs: daily bars for the
// underlying, the list of listed option expirations, and the chain of quotes
// for one expiration. Implementations:
//   - yahoo: Yahoo Finance chart and options endpoints
//   - massive: Massive/Polygon-compatible REST API
//   - csv: local files, with an optional secondary provider
//   - synthetic: deterministic generated data for offline runs
//
// Any provider can be wrapped by NewCachedProvider.
package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical expiration and bar date format.
const DateLayout = "2006-01-02"

var (
	// ErrUpstream marks failures talking to a remote market-data service.
	ErrUpstream = errors.New("market data upstream error")
	// ErrNoData marks a well-formed request the provider has nothing for.
	ErrNoData = errors.New("no market data")
)

// Provider supplies market data.
type Provider interface {
	// GetBars returns daily bars in [fromDate, toDate], oldest first.
	GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error)
	// GetExpirations returns listed expirations as YYYY-MM-DD strings in provider order.
	GetExpirations(ctx context.Context, underlying string) ([]string, error)
	// GetChain returns call and put quotes for one expiration.
	GetChain(ctx context.Context, underlying string, expiration string) (*Chain, error)
}

type DateMatchType string

const (
	MatchExact   DateMatchType = "exact"   // must match exactly
	MatchHigher  DateMatchType = "higher"  // next available date after target
	MatchLower   DateMatchType = "lower"   // last available date before target
	MatchNearest DateMatchType = "nearest" // closest available date (default)
)

// Bar simplified OHLC
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
}

// ContractQuote is one strike's market data for one side of a chain.
// NaN marks a field the provider did not report.
type ContractQuote struct {
	Symbol     string
	Strike     float64
	Bid        float64
	Ask        float64
	ImpliedVol float64
}

// Chain holds the quotes for one expiration, each side in provider order.
type Chain struct {
	Expiration string
	Calls      []ContractQuote
	Puts       []ContractQuote
}

// Missing reports whether v was not supplied by the provider or is not a
// finite number.
func Missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func optional(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// NormalizeTicker upper-cases and trims a user supplied symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// DayOf truncates t to midnight UTC of its calendar date.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OptionSymbolFromParts: OCC-like formatter (best-effort)
func OptionSymbolFromParts(underlying string, expiryDate time.Time, optionType string, strike float64) string {
	// OCC: <root><YYMMDD><C|P><strike*1000 padded to 8 digits>
	expDt := expiryDate.UTC().Format("060102")
	optType := "C"
	if strings.ToLower(optionType) == "put" || strings.ToLower(optionType) == "p" {
		optType = "P"
	}
	strikeInt := int(math.Round(strike * 1000))
	return fmt.Sprintf("%s%s%s%08d", strings.ToUpper(underlying), expDt, optType, strikeInt)
}

// MatchDate finds a date in ascending dates according to mode and returns its index,
// or -1 when nothing matches. Nearest ties resolve to the earlier date.
func MatchDate(d time.Time, dates []time.Time, mode DateMatchType) int {
	n := len(dates)
	if n == 0 {
		return -1
	}

	// default to MatchNearest
	switch mode {
	case MatchExact, MatchHigher, MatchLower, MatchNearest:
		// ok
	default:
		mode = MatchNearest
	}

	// first index with dates[i] >= d
	i := sort.Search(n, func(i int) bool { return !dates[i].Before(d) })
	exact := i < n && dates[i].Equal(d)

	switch mode {
	case MatchExact:
		if exact {
			return i
		}
		return -1

	case MatchLower:
		if i == 0 {
			return -1
		}
		return i - 1 // last date before d

	case MatchHigher:
		if exact {
			i++
		}
		if i >= n {
			return -1
		}
		return i // first date after d
	}

	// nearest
	if exact {
		return i
	}
	switch {
	case i == 0:
		return 0
	case i == n:
		return n - 1
	}
	if d.Sub(dates[i-1]) <= dates[i].Sub(d) {
		return i - 1
	}
	return i
}
