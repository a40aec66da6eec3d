package analytics

// Milestone ladder, in evaluation order.
const (
	MilestoneFirstActivity    = "Complete your first activity today"
	MilestoneFiveActivities   = "Complete 5 activities today"
	MilestoneTenActivities    = "Complete 10 activities today"
	MilestoneTwentyActivities = "Complete 20 activities today"
	MilestoneAccuracy70       = "Reach 70% accuracy"
	MilestoneAccuracy90       = "Reach 90% accuracy"
	MilestoneStreak3          = "Build a 3-day streak"
	MilestoneStreak7          = "Build a 7-day streak"
	MilestoneMaintain         = "Maintain your progress"
)

// Achievements.
const (
	AchievementTenQuestions     = "Answered 10+ questions today"
	AchievementHourStudied      = "Studied for over an hour"
	AchievementThreeLessons     = "Completed 3+ lessons"
	AchievementWeekStreak       = "7-day streak"
	AchievementHighProductivity = "High productivity day"
	AchievementPlaceholder      = "Keep going to unlock achievements"
)

// DefaultFocusArea is used when no weak area has been recorded.
const DefaultFocusArea = "General practice"

type rung struct {
	unmet func(d DailyAggregate, streak int) bool
	label string
}

var ladder = []rung{
	{func(d DailyAggregate, _ int) bool { return d.TotalActivities == 0 }, MilestoneFirstActivity},
	{func(d DailyAggregate, _ int) bool { return d.TotalActivities < 5 }, MilestoneFiveActivities},
	{func(d DailyAggregate, _ int) bool { return d.TotalActivities < 10 }, MilestoneTenActivities},
	{func(d DailyAggregate, _ int) bool { return d.TotalActivities < 20 }, MilestoneTwentyActivities},
	{func(d DailyAggregate, _ int) bool { return d.DailyAccuracy() < 70 }, MilestoneAccuracy70},
	{func(d DailyAggregate, _ int) bool { return d.DailyAccuracy() < 90 }, MilestoneAccuracy90},
	{func(_ DailyAggregate, s int) bool { return s < 3 }, MilestoneStreak3},
	{func(_ DailyAggregate, s int) bool { return s < 7 }, MilestoneStreak7},
}

// NextMilestone returns the first unmet rung of the ladder for today's row
// and the current streak.
func NextMilestone(today DailyAggregate, streak int) string {
	for _, r := range ladder {
		if r.unmet(today, streak) {
			return r.label
		}
	}
	return MilestoneMaintain
}

// Achievements evaluates each rule independently. The result is never empty.
func Achievements(today DailyAggregate, streak int) []string {
	var out []string
	if today.QuestionsAttempted >= 10 {
		out = append(out, AchievementTenQuestions)
	}
	if today.TotalTimeSpent >= 3600 {
		out = append(out, AchievementHourStudied)
	}
	if today.LessonsCompleted >= 3 {
		out = append(out, AchievementThreeLessons)
	}
	if streak >= 7 {
		out = append(out, AchievementWeekStreak)
	}
	if today.ProductivityScore >= 80 {
		out = append(out, AchievementHighProductivity)
	}
	if len(out) == 0 {
		return []string{AchievementPlaceholder}
	}
	return out
}

// FocusAreas prefers today's weak areas, then the week's, then a default.
func FocusAreas(today DailyAggregate, week WeeklyView) []string {
	if len(today.WeakAreas) > 0 {
		return capList(today.WeakAreas, maxAreas)
	}
	if len(week.WeakAreas) > 0 {
		return capList(week.WeakAreas, maxAreas)
	}
	return []string{DefaultFocusArea}
}

// DailyRecommendations are the short hints stored on each row.
func DailyRecommendations(d DailyAggregate) []string {
	var out []string
	if d.TotalActivities == 0 {
		return []string{"Start with one short activity to get going today"}
	}
	if d.QuestionsAttempted > 0 && d.DailyAccuracy() < 70 {
		out = append(out, "Review the questions you missed before moving on")
	}
	if d.TotalActivities < 10 {
		out = append(out, "A few more activities will make today count")
	}
	if len(d.WeakAreas) > 0 {
		out = append(out, "Spend some time on "+d.WeakAreas[0])
	}
	if len(out) == 0 {
		out = append(out, "Solid day, keep it up")
	}
	return out
}

func capList(list []string, n int) []string {
	if len(list) > n {
		list = list[:n]
	}
	return append([]string{}, list...)
}
