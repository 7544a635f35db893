package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/premium-backtest/internal/data"
	"github.com/contactkeval/premium-backtest/internal/testutil"
)

// early 2024 without the Jan 1, Jan 15 and Feb 19 market holidays
func holidaySeries() PriceSeries {
	holidays := map[time.Time]bool{
		testutil.Day(2024, 1, 1):  true,
		testutil.Day(2024, 1, 15): true,
		testutil.Day(2024, 2, 19): true,
	}
	var bars []data.Bar
	for _, b := range testutil.DailyBars(testutil.Day(2024, 1, 1), testutil.Day(2024, 2, 29), testutil.Flat(100)) {
		if !holidays[b.Date] {
			bars = append(bars, b)
		}
	}
	return NewPriceSeries(bars)
}

func collect(series PriceSeries, c Cadence) []string {
	var out []string
	for s := range Schedule(series, c) {
		out = append(out, s.Date.Format(data.DateLayout))
	}
	return out
}

func TestSchedule_Golden(t *testing.T) {
	series := holidaySeries()
	got := struct {
		Weekly  []string `json:"weekly"`
		Monthly []string `json:"monthly"`
	}{
		Weekly:  collect(series, CadenceWeekly),
		Monthly: collect(series, CadenceMonthly),
	}
	testutil.CompareWithGolden(t, "schedule", got)
}

func TestSchedule_SkipsMissingMondays(t *testing.T) {
	for _, d := range collect(holidaySeries(), CadenceWeekly) {
		assert.NotEqual(t, "2024-01-15", d)
		assert.NotEqual(t, "2024-02-19", d)
	}
}

func TestSchedule_Restartable(t *testing.T) {
	seq := Schedule(holidaySeries(), CadenceWeekly)

	var first, second []SampleDate
	for s := range seq {
		first = append(first, s)
	}
	for s := range seq {
		second = append(second, s)
	}
	assert.Equal(t, first, second)

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestSchedule_SampleCarriesClose(t *testing.T) {
	series := NewPriceSeries([]data.Bar{
		{Date: testutil.Day(2024, 3, 4), Close: 101},
		{Date: testutil.Day(2024, 3, 5), Close: 102},
		{Date: testutil.Day(2024, 3, 11), Close: 103},
	})
	var got []SampleDate
	for s := range Schedule(series, CadenceWeekly) {
		got = append(got, s)
	}
	require.Len(t, got, 2)
	assert.Equal(t, SampleDate{Index: 2, Date: testutil.Day(2024, 3, 11), Close: 103}, got[1])
}

func TestNewPriceSeries_SortsAndDedupes(t *testing.T) {
	series := NewPriceSeries([]data.Bar{
		{Date: testutil.Day(2024, 1, 3), Close: 3},
		{Date: time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC), Close: 2},
		{Date: testutil.Day(2024, 1, 2), Close: 20},
		{Date: testutil.Day(2024, 1, 4), Close: math.NaN()},
		{Date: testutil.Day(2024, 1, 5), Close: 0},
		{Date: testutil.Day(2024, 1, 1), Close: 1},
	})

	assert.Equal(t, []time.Time{testutil.Day(2024, 1, 1), testutil.Day(2024, 1, 2), testutil.Day(2024, 1, 3)}, series.Dates)
	assert.Equal(t, []float64{1, 2, 3}, series.Closes)
}

func TestPriceSeries_Nearest(t *testing.T) {
	series := NewPriceSeries([]data.Bar{
		{Date: testutil.Day(2024, 1, 5), Close: 1},
		{Date: testutil.Day(2024, 1, 8), Close: 2},
		{Date: testutil.Day(2024, 1, 12), Close: 3},
	})

	assert.Equal(t, 0, series.Nearest(testutil.Day(2024, 1, 1)))
	assert.Equal(t, 1, series.Nearest(testutil.Day(2024, 1, 8)))
	assert.Equal(t, 1, series.Nearest(testutil.Day(2024, 1, 7)))  // weekend expiry settles on Monday
	assert.Equal(t, 1, series.Nearest(testutil.Day(2024, 1, 10))) // equidistant: earlier wins
	assert.Equal(t, 2, series.Nearest(testutil.Day(2024, 3, 15)))
	assert.Equal(t, -1, PriceSeries{}.Nearest(testutil.Day(2024, 1, 1)))
}

func TestParseCadence(t *testing.T) {
	c, err := ParseCadence("")
	require.NoError(t, err)
	assert.Equal(t, CadenceWeekly, c)

	c, err = ParseCadence("Monthly")
	require.NoError(t, err)
	assert.Equal(t, CadenceMonthly, c)

	_, err = ParseCadence("daily")
	assert.ErrorIs(t, err, ErrInvalidParams)
}
