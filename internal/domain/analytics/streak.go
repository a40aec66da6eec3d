package analytics

import (
	"sort"
	"time"

	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// CalculateStreak counts consecutive active days ending today.
//
// rows must be sorted descending by date. At step i the expected date is
// today minus i days; the walk stops at the first row whose date differs
// from the expected one or whose activity count is zero.
func CalculateStreak(rows []DailyAggregate, today time.Time) int {
	streak := 0
	for i, row := range rows {
		expected := DateKey(timeutil.DaysAgo(today, i))
		if row.Date != expected || !row.IsActive() {
			break
		}
		streak++
	}
	return streak
}

// ChainStreak returns the StreakDays value for row given the previous
// calendar day's row (nil when absent). An inactive row has no streak.
func ChainStreak(previous *DailyAggregate, row DailyAggregate) int {
	if !row.IsActive() {
		return 0
	}
	if previous == nil || !previous.IsActive() || previous.Date != PreviousDate(row.Date) {
		return 1
	}
	return previous.StreakDays + 1
}

// LongestRun returns the longest run of consecutive active calendar days in
// rows, regardless of order.
func LongestRun(rows []DailyAggregate) int {
	active := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.IsActive() {
			active = append(active, r.Date)
		}
	}
	if len(active) == 0 {
		return 0
	}
	sort.Strings(active)

	best, run := 1, 1
	for i := 1; i < len(active); i++ {
		switch {
		case active[i] == active[i-1]:
			continue
		case PreviousDate(active[i]) == active[i-1]:
			run++
		default:
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}
