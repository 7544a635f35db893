package backtest

import (
	"fmt"
	"iter"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/contactkeval/premium-backtest/internal/data"
)

// Cadence names the rule that turns a price series into sample dates.
type Cadence string

const (
	CadenceWeekly  Cadence = "weekly"  // every trading Monday
	CadenceMonthly Cadence = "monthly" // first trading day of each calendar month
)

// ParseCadence accepts the cadence identifiers plus a few aliases; empty means weekly.
func ParseCadence(s string) (Cadence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "weekly", "weekly-monday", "monday":
		return CadenceWeekly, nil
	case "monthly", "first-of-month":
		return CadenceMonthly, nil
	}
	return "", fmt.Errorf("%w: unknown cadence %q", ErrInvalidParams, s)
}

// PriceSeries is an ascending, duplicate-free daily close series.
type PriceSeries struct {
	Dates  []time.Time
	Closes []float64
}

// SampleDate is a series date chosen by a cadence, with its close.
type SampleDate struct {
	Index int
	Date  time.Time
	Close float64
}

// NewPriceSeries builds a series from provider bars. Bars are sorted by
// calendar date; for duplicate dates the first bar seen wins. Bars without
// a usable close are dropped.
func NewPriceSeries(bars []data.Bar) PriceSeries {
	sorted := make([]data.Bar, 0, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			continue
		}
		b.Date = data.DayOf(b.Date)
		sorted = append(sorted, b)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	ps := PriceSeries{
		Dates:  make([]time.Time, 0, len(sorted)),
		Closes: make([]float64, 0, len(sorted)),
	}
	for _, b := range sorted {
		if n := len(ps.Dates); n > 0 && ps.Dates[n-1].Equal(b.Date) {
			continue
		}
		ps.Dates = append(ps.Dates, b.Date)
		ps.Closes = append(ps.Closes, b.Close)
	}
	return ps
}

func (ps PriceSeries) Len() int { return len(ps.Dates) }

// Nearest returns the index of the series date closest to d; ties go to the
// earlier date. It returns -1 on an empty series.
func (ps PriceSeries) Nearest(d time.Time) int {
	return data.MatchDate(data.DayOf(d), ps.Dates, data.MatchNearest)
}

// Schedule yields the sample dates of series for cadence in ascending order.
// Only dates present in the series are produced; a week without a trading
// Monday contributes nothing. The sequence can be ranged over any number of times.
func Schedule(series PriceSeries, cadence Cadence) iter.Seq[SampleDate] {
	return func(yield func(SampleDate) bool) {
		var lastYear int
		var lastMonth time.Month
		for i, d := range series.Dates {
			switch cadence {
			case CadenceMonthly:
				if d.Year() == lastYear && d.Month() == lastMonth {
					continue
				}
				lastYear, lastMonth = d.Year(), d.Month()
			default:
				if d.Weekday() != time.Monday {
					continue
				}
			}
			if !yield(SampleDate{Index: i, Date: d, Close: series.Closes[i]}) {
				return
			}
		}
	}
}
