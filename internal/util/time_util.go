package util

import (
	"time"
)

func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// TruncateToDate drops the time of day, keeping the calendar date as seen
// in t's location
func TruncateToDate(t time.Time) time.Time {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func DateLte(t1, t2 time.Time) bool {
	return !TruncateToDate(t1).After(TruncateToDate(t2))
}

// DateInRange reports whether t falls on a calendar date in [start, end]
func DateInRange(t, start, end time.Time) bool {
	return DateLte(start, t) && DateLte(t, end)
}
