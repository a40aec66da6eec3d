package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// Placeholders used instead of empty values.
const (
	NoData             = "No data"
	NotEnoughData      = "Not enough data"
	maxAreas           = 3
	improvementSampleN = 7
)

// Weekly recommendation strings.
const (
	RecommendAccuracy    = "Focus on accuracy: review explanations for the questions you miss"
	RecommendMoreDaily   = "Try to complete more activities each day"
	RecommendConsistency = "Be consistent: study a little every day"
	RecommendKeepGoing   = "Great work this week, keep up the momentum"
)

// ══════════════════════════════════════════════════════════════════════════════
// VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// TodayProgress is today's row plus its derived figures.
type TodayProgress struct {
	DailyAggregate
	DailyAccuracy    int `json:"daily_accuracy"`
	StudyTimeMinutes int `json:"study_time_minutes"`
}

// NewTodayProgress projects a row into the today view.
func NewTodayProgress(row DailyAggregate) TodayProgress {
	return TodayProgress{
		DailyAggregate:   row.Clone(),
		DailyAccuracy:    row.DailyAccuracy(),
		StudyTimeMinutes: row.StudyTimeMinutes(),
	}
}

// DaySummary is one calendar day inside a weekly view.
type DaySummary struct {
	Date         string `json:"date"`
	Weekday      string `json:"weekday"`
	Activities   int    `json:"activities"`
	StudyMinutes int    `json:"study_minutes"`
	Accuracy     int    `json:"accuracy"`
	Score        int    `json:"productivity_score"`
}

// WeeklyView is the fold of the trailing week. It is never persisted.
type WeeklyView struct {
	WeekStart           string       `json:"week_start"`
	WeekEnd             string       `json:"week_end"`
	TotalActivities     int          `json:"total_activities"`
	TotalTimeSpent      int          `json:"total_time_spent"`
	TotalStudyMinutes   int          `json:"total_study_minutes"`
	QuestionsAttempted  int          `json:"questions_attempted"`
	QuestionsCorrect    int          `json:"questions_correct"`
	Accuracy            int          `json:"accuracy"`
	LessonsCompleted    int          `json:"lessons_completed"`
	AITutorInteractions int          `json:"ai_tutor_interactions"`
	ActiveDays          int          `json:"active_days"`
	AverageDailyMinutes int          `json:"average_daily_minutes"`
	MostProductiveDay   string       `json:"most_productive_day"`
	MostProductiveDate  string       `json:"most_productive_date,omitempty"`
	WeakAreas           []string     `json:"weak_areas"`
	StrongAreas         []string     `json:"strong_areas"`
	Recommendations     []string     `json:"recommendations"`
	Days                []DaySummary `json:"days"`
}

// WeekBucket is a 7-day slice of a monthly view.
type WeekBucket struct {
	WeekStart    string `json:"week_start"`
	WeekEnd      string `json:"week_end"`
	Activities   int    `json:"activities"`
	StudyMinutes int    `json:"study_minutes"`
	Accuracy     int    `json:"accuracy"`
}

// MonthlyView is the fold of the trailing month window.
type MonthlyView struct {
	Month                    string       `json:"month"`
	MonthStart               string       `json:"month_start"`
	MonthEnd                 string       `json:"month_end"`
	TotalActivities          int          `json:"total_activities"`
	TotalTimeSpent           int          `json:"total_time_spent"`
	TotalStudyMinutes        int          `json:"total_study_minutes"`
	QuestionsAttempted       int          `json:"questions_attempted"`
	QuestionsCorrect         int          `json:"questions_correct"`
	Accuracy                 int          `json:"accuracy"`
	LessonsCompleted         int          `json:"lessons_completed"`
	ActiveDays               int          `json:"active_days"`
	LongestStreak            int          `json:"longest_streak"`
	LongestActiveRun         int          `json:"longest_active_run"`
	ImprovementRate          int          `json:"improvement_rate"`
	AverageProductivityScore int          `json:"average_productivity_score"`
	PeakStudyDays            []string     `json:"peak_study_days"`
	WeeklyBreakdown          []WeekBucket `json:"weekly_breakdown"`
}

// RealTimeAnalytics is the composite dashboard value.
type RealTimeAnalytics struct {
	UserID        string        `json:"user_id"`
	Today         TodayProgress `json:"today"`
	ThisWeek      WeeklyView    `json:"this_week"`
	ThisMonth     MonthlyView   `json:"this_month"`
	CurrentStreak int           `json:"current_streak"`
	NextMilestone string        `json:"next_milestone"`
	FocusAreas    []string      `json:"focus_areas"`
	Achievements  []string      `json:"achievements"`
	GeneratedAt   time.Time     `json:"generated_at"`
	FromCache     bool          `json:"from_cache"`
}

// StudyInsights is the narrative summary built from the views.
type StudyInsights struct {
	Insights           []string `json:"insights"`
	Recommendations    []string `json:"recommendations"`
	NextMilestone      string   `json:"next_milestone"`
	PreferredStudyTime string   `json:"preferred_study_time"`
	PeakStudyDays      []string `json:"peak_study_days"`
}

// ══════════════════════════════════════════════════════════════════════════════
// WINDOWS
// ══════════════════════════════════════════════════════════════════════════════

// Window is an inclusive range of calendar days ending today.
type Window struct {
	Start time.Time
	End   time.Time
}

// TrailingWindow returns the window of n days ending on today's date.
func TrailingWindow(today time.Time, n int) Window {
	if n < 1 {
		n = 1
	}
	return Window{
		Start: timeutil.DaysAgo(today, n-1),
		End:   timeutil.StartOfDay(today),
	}
}

// From returns the window's first date key.
func (w Window) From() string { return DateKey(w.Start) }

// To returns the window's last date key.
func (w Window) To() string { return DateKey(w.End) }

// Days returns every date key in the window, ascending.
func (w Window) Days() []string {
	var out []string
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		out = append(out, DateKey(d))
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// FOLDS
// ══════════════════════════════════════════════════════════════════════════════

type totals struct {
	activities, timeSpent, attempted, correct, lessons, aiTutor, activeDays int
}

func sum(rows []DailyAggregate) totals {
	var t totals
	for _, r := range rows {
		t.activities += r.TotalActivities
		t.timeSpent += r.TotalTimeSpent
		t.attempted += r.QuestionsAttempted
		t.correct += r.QuestionsCorrect
		t.lessons += r.LessonsCompleted
		t.aiTutor += r.AITutorInteractions
		if r.IsActive() {
			t.activeDays++
		}
	}
	return t
}

// BuildWeekly folds rows (ascending, inside w) into a weekly view.
// An empty window yields zero counts with explicit placeholders.
func BuildWeekly(rows []DailyAggregate, w Window) WeeklyView {
	rows = sortedAscending(rows)
	t := sum(rows)
	days := len(w.Days())

	v := WeeklyView{
		WeekStart:           w.From(),
		WeekEnd:             w.To(),
		TotalActivities:     t.activities,
		TotalTimeSpent:      t.timeSpent,
		TotalStudyMinutes:   t.timeSpent / 60,
		QuestionsAttempted:  t.attempted,
		QuestionsCorrect:    t.correct,
		Accuracy:            Accuracy(t.correct, t.attempted),
		LessonsCompleted:    t.lessons,
		AITutorInteractions: t.aiTutor,
		ActiveDays:          t.activeDays,
		AverageDailyMinutes: t.timeSpent / 60 / days,
		MostProductiveDay:   NoData,
		WeakAreas:           collectAreas(rows, func(r DailyAggregate) []string { return r.WeakAreas }),
		StrongAreas:         collectAreas(rows, func(r DailyAggregate) []string { return r.StrongAreas }),
	}

	// Strict > keeps the earliest date on ties.
	best := -1
	for i, r := range rows {
		if r.TotalActivities > 0 && (best < 0 || r.TotalActivities > rows[best].TotalActivities) {
			best = i
		}
	}
	if best >= 0 {
		v.MostProductiveDate = rows[best].Date
		if d, err := timeutil.ParseDate(rows[best].Date, w.End.Location()); err == nil {
			v.MostProductiveDay = timeutil.WeekdayName(d)
		}
	}

	v.Recommendations = weeklyRecommendations(v, len(rows))
	v.Days = daySummaries(rows, w)
	return v
}

func weeklyRecommendations(v WeeklyView, rowCount int) []string {
	var out []string
	if v.Accuracy < 70 {
		out = append(out, RecommendAccuracy)
	}
	if v.TotalActivities < 10 {
		out = append(out, RecommendMoreDaily)
	}
	if rowCount < 3 {
		out = append(out, RecommendConsistency)
	}
	if len(out) == 0 {
		out = append(out, RecommendKeepGoing)
	}
	return out
}

func daySummaries(rows []DailyAggregate, w Window) []DaySummary {
	byDate := make(map[string]DailyAggregate, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	var out []DaySummary
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		key := DateKey(d)
		r := byDate[key]
		out = append(out, DaySummary{
			Date:         key,
			Weekday:      timeutil.WeekdayName(d),
			Activities:   r.TotalActivities,
			StudyMinutes: r.StudyTimeMinutes(),
			Accuracy:     r.DailyAccuracy(),
			Score:        r.ProductivityScore,
		})
	}
	return out
}

// BuildMonthly folds rows (inside w) into a monthly view. today supplies
// the month label.
func BuildMonthly(rows []DailyAggregate, w Window, today time.Time) MonthlyView {
	rows = sortedAscending(rows)
	t := sum(rows)

	v := MonthlyView{
		Month:              timeutil.MonthLabel(today),
		MonthStart:         w.From(),
		MonthEnd:           w.To(),
		TotalActivities:    t.activities,
		TotalTimeSpent:     t.timeSpent,
		TotalStudyMinutes:  t.timeSpent / 60,
		QuestionsAttempted: t.attempted,
		QuestionsCorrect:   t.correct,
		Accuracy:           Accuracy(t.correct, t.attempted),
		LessonsCompleted:   t.lessons,
		ActiveDays:         t.activeDays,
		LongestActiveRun:   LongestRun(rows),
		ImprovementRate:    ImprovementRate(rows),
		PeakStudyDays:      PeakStudyDays(rows, w.End.Location(), 2),
		WeeklyBreakdown:    weekBuckets(rows, w),
	}

	scoreSum := 0
	for _, r := range rows {
		if r.StreakDays > v.LongestStreak {
			v.LongestStreak = r.StreakDays
		}
		if r.IsActive() {
			scoreSum += r.ProductivityScore
		}
	}
	if t.activeDays > 0 {
		v.AverageProductivityScore = int(math.Round(float64(scoreSum) / float64(t.activeDays)))
	}
	return v
}

// ImprovementRate compares the average QuestionsAttempted of the first seven
// rows against the last seven, as a rounded percentage. It is 0 with fewer
// than two rows or a zero baseline.
func ImprovementRate(rows []DailyAggregate) int {
	if len(rows) < 2 {
		return 0
	}
	n := improvementSampleN
	if n > len(rows) {
		n = len(rows)
	}
	first := avgAttempted(rows[:n])
	last := avgAttempted(rows[len(rows)-n:])
	if first == 0 {
		return 0
	}
	return int(math.Round((last - first) / first * 100))
}

func avgAttempted(rows []DailyAggregate) float64 {
	total := 0
	for _, r := range rows {
		total += r.QuestionsAttempted
	}
	return float64(total) / float64(len(rows))
}

// PeakStudyDays returns the weekday names of the n most active rows,
// ties going to the earlier date. Duplicate weekdays are collapsed.
func PeakStudyDays(rows []DailyAggregate, loc *time.Location, n int) []string {
	active := make([]DailyAggregate, 0, len(rows))
	for _, r := range rows {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].TotalActivities != active[j].TotalActivities {
			return active[i].TotalActivities > active[j].TotalActivities
		}
		return active[i].Date < active[j].Date
	})

	out := []string{}
	seen := map[string]bool{}
	for _, r := range active {
		if len(out) == n {
			break
		}
		d, err := timeutil.ParseDate(r.Date, loc)
		if err != nil {
			continue
		}
		name := timeutil.WeekdayName(d)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func weekBuckets(rows []DailyAggregate, w Window) []WeekBucket {
	var out []WeekBucket
	for start := w.Start; !start.After(w.End); start = start.AddDate(0, 0, 7) {
		end := start.AddDate(0, 0, 6)
		if end.After(w.End) {
			end = w.End
		}
		from, to := DateKey(start), DateKey(end)

		var b WeekBucket
		b.WeekStart, b.WeekEnd = from, to
		attempted, correct, seconds := 0, 0, 0
		for _, r := range rows {
			if r.Date < from || r.Date > to {
				continue
			}
			b.Activities += r.TotalActivities
			seconds += r.TotalTimeSpent
			attempted += r.QuestionsAttempted
			correct += r.QuestionsCorrect
		}
		b.StudyMinutes = seconds / 60
		b.Accuracy = Accuracy(correct, attempted)
		out = append(out, b)
	}
	return out
}

// collectAreas deduplicates areas in first-seen order and caps the result.
func collectAreas(rows []DailyAggregate, pick func(DailyAggregate) []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, r := range rows {
		for _, a := range pick(r) {
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
			if len(out) == maxAreas {
				return out
			}
		}
	}
	return out
}

func sortedAscending(rows []DailyAggregate) []DailyAggregate {
	if sort.SliceIsSorted(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date }) {
		return rows
	}
	out := append([]DailyAggregate{}, rows...)
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
