package backtest

import (
	"time"

	"github.com/contactkeval/premium-backtest/internal/data"
)

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(data.DayOf(b).Sub(data.DayOf(a)).Hours() / 24)
}

// SelectExpiration scans expirations in the order given and returns the first
// one strictly after sample whose day count lies in [minExp, maxExp].
// The scan does not look for the closest match: with several candidates in
// range, list order decides. Unparseable entries are ignored. ok is false
// when nothing qualifies.
func SelectExpiration(sample time.Time, expirations []string, minExp, maxExp int) (exp string, days int, ok bool) {
	day := data.DayOf(sample)
	for _, s := range expirations {
		d, err := data.ParseDate(s)
		if err != nil || !d.After(day) {
			continue
		}
		n := DaysBetween(day, d)
		if n >= minExp && n <= maxExp {
			return s, n, true
		}
	}
	return "", 0, false
}
