package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekRows() []DailyAggregate {
	r12 := day("2026-10-12", 3)
	r12.TotalTimeSpent = 600
	r12.QuestionsAttempted, r12.QuestionsCorrect = 4, 2
	r12.WeakAreas = []string{"algebra", "geometry"}

	r14 := day("2026-10-14", 5)
	r14.TotalTimeSpent = 1200
	r14.QuestionsAttempted, r14.QuestionsCorrect = 6, 6
	r14.WeakAreas = []string{"algebra", "physics", "chemistry"}
	r14.StrongAreas = []string{"history"}

	r16 := day("2026-10-16", 5)
	r16.TotalTimeSpent = 600

	return []DailyAggregate{r12, r14, r16}
}

func TestTrailingWindow(t *testing.T) {
	w := TrailingWindow(today, 7)
	assert.Equal(t, "2026-10-12", w.From())
	assert.Equal(t, "2026-10-18", w.To())
	assert.Len(t, w.Days(), 7)

	m := TrailingWindow(today, 30)
	assert.Equal(t, "2026-09-19", m.From())
	assert.Len(t, m.Days(), 30)
}

func TestBuildWeekly(t *testing.T) {
	v := BuildWeekly(weekRows(), TrailingWindow(today, 7))

	assert.Equal(t, 13, v.TotalActivities)
	assert.Equal(t, 40, v.TotalStudyMinutes)
	assert.Equal(t, 10, v.QuestionsAttempted)
	assert.Equal(t, 8, v.QuestionsCorrect)
	assert.Equal(t, 80, v.Accuracy)
	assert.Equal(t, 3, v.ActiveDays)
	assert.Equal(t, 5, v.AverageDailyMinutes)
	assert.Equal(t, "Wednesday", v.MostProductiveDay, "ties resolve to the earliest date")
	assert.Equal(t, "2026-10-14", v.MostProductiveDate)
	assert.Equal(t, []string{"algebra", "geometry", "physics"}, v.WeakAreas)
	assert.Equal(t, []string{"history"}, v.StrongAreas)
	assert.Equal(t, []string{RecommendKeepGoing}, v.Recommendations)

	require.Len(t, v.Days, 7)
	assert.Equal(t, "Monday", v.Days[0].Weekday)
	assert.Equal(t, 3, v.Days[0].Activities)
	assert.Equal(t, 0, v.Days[1].Activities)
}

func TestBuildWeekly_Empty(t *testing.T) {
	v := BuildWeekly(nil, TrailingWindow(today, 7))

	assert.Equal(t, NoData, v.MostProductiveDay)
	assert.Equal(t, 0, v.Accuracy)
	assert.Equal(t, 0, v.TotalActivities)
	assert.NotNil(t, v.WeakAreas)
	assert.Equal(t, []string{RecommendAccuracy, RecommendMoreDaily, RecommendConsistency}, v.Recommendations)
	assert.Len(t, v.Days, 7)
}

func TestBuildWeekly_AllZeroRowsHaveNoProductiveDay(t *testing.T) {
	v := BuildWeekly([]DailyAggregate{day("2026-10-17", 0), day("2026-10-18", 0)}, TrailingWindow(today, 7))
	assert.Equal(t, NoData, v.MostProductiveDay)
}

func TestBuildWeekly_LowAccuracy(t *testing.T) {
	row := day("2026-10-18", 12)
	row.QuestionsAttempted, row.QuestionsCorrect = 10, 5

	v := BuildWeekly([]DailyAggregate{row}, TrailingWindow(today, 7))

	assert.Equal(t, 50, v.Accuracy)
	assert.Equal(t, []string{RecommendAccuracy, RecommendConsistency}, v.Recommendations)
}

func TestBuildWeekly_NoAttemptsCountsAsLowAccuracy(t *testing.T) {
	v := BuildWeekly([]DailyAggregate{day("2026-10-18", 12)}, TrailingWindow(today, 7))

	assert.Equal(t, 0, v.Accuracy)
	assert.Equal(t, []string{RecommendAccuracy, RecommendConsistency}, v.Recommendations)
}

func TestBuildWeekly_UnsortedInput(t *testing.T) {
	rows := weekRows()
	rows[0], rows[2] = rows[2], rows[0]

	v := BuildWeekly(rows, TrailingWindow(today, 7))
	assert.Equal(t, "2026-10-14", v.MostProductiveDate)
	assert.Equal(t, []string{"algebra", "geometry", "physics"}, v.WeakAreas)
}

func TestImprovementRate(t *testing.T) {
	var rows []DailyAggregate
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		r := day(DateKey(start.AddDate(0, 0, i)), 1)
		r.QuestionsAttempted = 2
		if i >= 7 {
			r.QuestionsAttempted = 3
		}
		rows = append(rows, r)
	}

	assert.Equal(t, 50, ImprovementRate(rows))
	assert.Equal(t, 0, ImprovementRate(rows[:1]))

	for i := 0; i < 7; i++ {
		rows[i].QuestionsAttempted = 0
	}
	assert.Equal(t, 0, ImprovementRate(rows), "zero baseline")
}

func TestBuildMonthly(t *testing.T) {
	a := day("2026-10-06", 10)
	a.StreakDays = 4
	a.ProductivityScore = 60
	b := day("2026-10-13", 9)
	b.StreakDays = 2
	b.ProductivityScore = 40
	c := day("2026-10-14", 9)
	c.StreakDays = 3
	c.ProductivityScore = 51

	v := BuildMonthly([]DailyAggregate{a, b, c}, TrailingWindow(today, 30), today)

	assert.Equal(t, "October 2026", v.Month)
	assert.Equal(t, 28, v.TotalActivities)
	assert.Equal(t, 3, v.ActiveDays)
	assert.Equal(t, 4, v.LongestStreak)
	assert.Equal(t, 2, v.LongestActiveRun)
	assert.Equal(t, 50, v.AverageProductivityScore)
	assert.Equal(t, []string{"Tuesday", "Wednesday"}, v.PeakStudyDays)
	assert.Len(t, v.WeeklyBreakdown, 5)
}

func TestBuildMonthly_Empty(t *testing.T) {
	v := BuildMonthly(nil, TrailingWindow(today, 30), today)

	assert.Equal(t, "October 2026", v.Month)
	assert.Equal(t, 0, v.TotalActivities)
	assert.Equal(t, 0, v.ImprovementRate)
	assert.Equal(t, []string{}, v.PeakStudyDays)
	assert.Len(t, v.WeeklyBreakdown, 5)
}

func TestCompose_SevenDayStreak(t *testing.T) {
	var rows []DailyAggregate
	for i := 0; i < 7; i++ {
		rows = append(rows, day(DateKey(today.AddDate(0, 0, -i)), 2))
	}
	streak := CalculateStreak(rows, today)

	w := TrailingWindow(today, 7)
	rt := Compose("u1", rows[0], BuildWeekly(rows, w), BuildMonthly(rows, TrailingWindow(today, 30), today), streak)

	assert.Equal(t, 7, rt.CurrentStreak)
	assert.Contains(t, rt.Achievements, AchievementWeekStreak)
	assert.Equal(t, MilestoneFiveActivities, rt.NextMilestone)
	assert.Equal(t, []string{DefaultFocusArea}, rt.FocusAreas)
}

func TestBuildInsights(t *testing.T) {
	rows := weekRows()
	week := BuildWeekly(rows, TrailingWindow(today, 7))
	month := BuildMonthly(rows, TrailingWindow(today, 30), today)
	rt := Compose("u1", NewEmptyDay("u1", "2026-10-18"), week, month, 0)

	ins := BuildInsights(rt)

	assert.Equal(t, "Start a streak by studying today", ins.Insights[0])
	assert.Contains(t, ins.Insights, "Your accuracy this week is 80%")
	assert.Contains(t, ins.Insights, "You studied 40m this week")
	assert.Contains(t, ins.Insights, "Wednesday was your most productive day this week")
	assert.Equal(t, week.Recommendations, ins.Recommendations)
	assert.Equal(t, MilestoneFirstActivity, ins.NextMilestone)
	assert.Equal(t, NotEnoughData, ins.PreferredStudyTime)
	assert.Equal(t, []string{"Wednesday", "Friday"}, ins.PeakStudyDays)
}
