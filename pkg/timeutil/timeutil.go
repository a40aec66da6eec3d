// Package timeutil provides calendar-day utilities for the analytics engine.
// Every daily row is keyed by a local calendar date, so all window math
// (today, trailing week, trailing month) goes through these helpers.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Common date/time formats.
const (
	// FormatDate is the storage key format for daily rows (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatMonth is the human-readable month label ("October 2026").
	FormatMonth = "January 2006"
)

// Clock abstracts the current time so that day boundaries can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock returns time.Now in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock creates a clock bound to loc (UTC when nil).
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{Location: loc}
}

// Now returns the current time in the clock's location.
func (c SystemClock) Now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

// FixedClock always returns the same instant. Useful in tests.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// LoadLocation resolves an IANA zone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysAgo returns the start of the day n calendar days before t.
// AddDate is used instead of subtracting 24h so DST transitions don't shift the date.
func DaysAgo(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, -n)
}

// FormatDateStr formats t as a storage date key (YYYY-MM-DD).
func FormatDateStr(t time.Time) string {
	return t.Format(FormatDate)
}

// ParseDate parses a YYYY-MM-DD key in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(FormatDate, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parse date %q: %w", value, err)
	}
	return t, nil
}

// MonthLabel returns a label like "October 2026".
func MonthLabel(t time.Time) string {
	return t.Format(FormatMonth)
}

// WeekdayName returns the English weekday name of t.
func WeekdayName(t time.Time) string {
	return t.Weekday().String()
}

// FormatMinutes renders a minute count as "45m" or "2h 5m".
func FormatMinutes(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
