package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns t plus the interval.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// DailySchedule runs a job once a day at a wall-clock time in a location.
type DailySchedule struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// Midnight returns a schedule firing at 00:00 in loc.
func Midnight(loc *time.Location) *DailySchedule {
	return &DailySchedule{Location: loc}
}

// Next returns the first matching wall-clock time strictly after t.
func (s *DailySchedule) Next(t time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)

	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+1, s.Hour, s.Minute, 0, 0, loc)
	}
	return next
}

// String returns the string representation of the schedule.
func (s *DailySchedule) String() string {
	loc := "UTC"
	if s.Location != nil {
		loc = s.Location.String()
	}
	return fmt.Sprintf("@daily %02d:%02d %s", s.Hour, s.Minute, loc)
}
