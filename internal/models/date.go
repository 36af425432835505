package models

import "time"

// DateLayout is the canonical civil date format used across the API.
const DateLayout = "2006-01-02"

// CivilDate truncates t to its calendar date (as seen in t's location) and returns it at UTC midnight.
// Shift dates, violation dates and expiry dates are all civil dates.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDate builds a civil date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, raw)
}

// DaysBetween counts whole days from one civil date to another.
func DaysBetween(from, to time.Time) int {
	return int(CivilDate(to).Sub(CivilDate(from)).Hours() / 24)
}

// AddMonths moves a civil date by whole months, clamping to the last day of
// the target month: Aug 31 plus 6 months is Feb 28 (or 29).
func AddMonths(date time.Time, months int) time.Time {
	d := CivilDate(date)
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
