package analytics

import (
	"fmt"

	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// BuildInsights turns a realtime composite into narrative insights.
//
// PreferredStudyTime stays a placeholder: rows carry no hour-of-day, so
// there is nothing to bucket.
func BuildInsights(rt RealTimeAnalytics) StudyInsights {
	var insights []string

	if rt.CurrentStreak > 0 {
		insights = append(insights, fmt.Sprintf("You're on a %d-day streak", rt.CurrentStreak))
	} else {
		insights = append(insights, "Start a streak by studying today")
	}

	week := rt.ThisWeek
	if week.QuestionsAttempted > 0 {
		insights = append(insights, fmt.Sprintf("Your accuracy this week is %d%%", week.Accuracy))
	}
	if week.TotalStudyMinutes > 0 {
		insights = append(insights, "You studied "+timeutil.FormatMinutes(week.TotalStudyMinutes)+" this week")
	}
	if week.MostProductiveDay != NoData {
		insights = append(insights, week.MostProductiveDay+" was your most productive day this week")
	}

	switch rate := rt.ThisMonth.ImprovementRate; {
	case rate > 0:
		insights = append(insights, fmt.Sprintf("You're answering %d%% more questions than at the start of the month", rate))
	case rate < 0:
		insights = append(insights, fmt.Sprintf("You're answering %d%% fewer questions than at the start of the month", -rate))
	}

	peak := rt.ThisMonth.PeakStudyDays
	if peak == nil {
		peak = []string{}
	}

	return StudyInsights{
		Insights:           insights,
		Recommendations:    append([]string{}, week.Recommendations...),
		NextMilestone:      rt.NextMilestone,
		PreferredStudyTime: NotEnoughData,
		PeakStudyDays:      peak,
	}
}

// Compose assembles the realtime composite from the three views and the
// current streak. It is shared by every caller that builds the dashboard.
func Compose(userID string, today DailyAggregate, week WeeklyView, month MonthlyView, streak int) RealTimeAnalytics {
	return RealTimeAnalytics{
		UserID:        userID,
		Today:         NewTodayProgress(today),
		ThisWeek:      week,
		ThisMonth:     month,
		CurrentStreak: streak,
		NextMilestone: NextMilestone(today, streak),
		FocusAreas:    FocusAreas(today, week),
		Achievements:  Achievements(today, streak),
	}
}
