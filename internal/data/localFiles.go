package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/premium-backtest/internal/logger"
)

// localFileDataProvider implements Provider from CSV files in one directory:
//
//	<TICKER>_bars.csv                  date,open,high,low,close,volume (only date and close required)
//	<TICKER>_chain_<YYYY-MM-DD>.csv    type,symbol,strike,bid,ask,implied_volatility
//
// Empty cells are treated as missing. Anything without a file is delegated
// to the secondary provider when one is configured.
type localFileDataProvider struct {
	dir       string
	secondary Provider
}

// NewLocalFileDataProvider convenience constructor.
func NewLocalFileDataProvider(dir string, secondary Provider) *localFileDataProvider {
	return &localFileDataProvider{dir: dir, secondary: secondary}
}

// Secondary returns the fallback provider, if any.
func (localFileDataProv *localFileDataProvider) Secondary() Provider {
	return localFileDataProv.secondary
}

func (localFileDataProv *localFileDataProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	path := filepath.Join(localFileDataProv.dir, underlying+"_bars.csv")
	rows, header, err := readCSV(path)
	if errors.Is(err, fs.ErrNotExist) && localFileDataProv.secondary != nil {
		logger.Debugf("no local bars for %s, using secondary provider", underlying)
		return localFileDataProv.secondary.GetBars(ctx, underlying, fromDate, toDate)
	}
	if err != nil {
		return nil, fmt.Errorf("local bars %s: %w", underlying, err)
	}

	dateCol, ok := header["date"]
	closeCol, ok2 := header["close"]
	if !ok || !ok2 {
		return nil, fmt.Errorf("local bars %s: header needs date and close columns", underlying)
	}

	from, to := DayOf(fromDate), DayOf(toDate)
	var out []Bar
	for i, row := range rows {
		d, err := ParseDate(cell(row, dateCol))
		if err != nil {
			return nil, fmt.Errorf("local bars %s row %d: %w", underlying, i+2, err)
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		cl := parseCell(cell(row, closeCol))
		if Missing(cl) {
			continue
		}
		out = append(out, Bar{
			Date:  d,
			Open:  zeroIfMissing(parseNamed(row, header, "open")),
			High:  zeroIfMissing(parseNamed(row, header, "high")),
			Low:   zeroIfMissing(parseNamed(row, header, "low")),
			Close: cl,
			Vol:   zeroIfMissing(parseNamed(row, header, "volume")),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// GetExpirations lists the chain files present for the underlying, ascending.
func (localFileDataProv *localFileDataProvider) GetExpirations(ctx context.Context, underlying string) ([]string, error) {
	prefix := underlying + "_chain_"
	matches, err := filepath.Glob(filepath.Join(localFileDataProv.dir, prefix+"*.csv"))
	if err != nil {
		return nil, fmt.Errorf("local expirations %s: %w", underlying, err)
	}

	var out []string
	for _, m := range matches {
		exp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), prefix), ".csv")
		if _, err := ParseDate(exp); err != nil {
			continue
		}
		out = append(out, exp)
	}
	if len(out) == 0 && localFileDataProv.secondary != nil {
		return localFileDataProv.secondary.GetExpirations(ctx, underlying)
	}
	sort.Strings(out)
	return out, nil
}

func (localFileDataProv *localFileDataProvider) GetChain(ctx context.Context, underlying string, expiration string) (*Chain, error) {
	path := filepath.Join(localFileDataProv.dir, underlying+"_chain_"+expiration+".csv")
	rows, header, err := readCSV(path)
	if errors.Is(err, fs.ErrNotExist) && localFileDataProv.secondary != nil {
		return localFileDataProv.secondary.GetChain(ctx, underlying, expiration)
	}
	if err != nil {
		return nil, fmt.Errorf("local chain %s %s: %w", underlying, expiration, err)
	}

	typeCol, ok := header["type"]
	if !ok {
		return nil, fmt.Errorf("local chain %s %s: header needs a type column", underlying, expiration)
	}

	chain := &Chain{Expiration: expiration}
	for _, row := range rows {
		q := ContractQuote{
			Strike:     parseNamed(row, header, "strike"),
			Bid:        parseNamed(row, header, "bid"),
			Ask:        parseNamed(row, header, "ask"),
			ImpliedVol: parseNamed(row, header, "implied_volatility"),
		}
		if col, ok := header["symbol"]; ok {
			q.Symbol = cell(row, col)
		}
		switch strings.ToLower(cell(row, typeCol)) {
		case "call", "c":
			chain.Calls = append(chain.Calls, q)
		case "put", "p":
			chain.Puts = append(chain.Puts, q)
		}
	}
	return chain, nil
}

// readCSV reads a whole file and indexes its lower-cased header.
func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	head, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, nil, err
	}
	header := make(map[string]int, len(head))
	for i, h := range head {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return rows, header, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseCell(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseNamed(row []string, header map[string]int, name string) float64 {
	col, ok := header[name]
	if !ok {
		return math.NaN()
	}
	return parseCell(cell(row, col))
}

func zeroIfMissing(v float64) float64 {
	if Missing(v) {
		return 0
	}
	return v
}
