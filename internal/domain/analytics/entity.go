// Package analytics contains the daily learning-analytics aggregate and the
// pure computations derived from it: accuracy, productivity score, streaks,
// milestones, achievements, and the weekly and monthly rollups.
//
// Nothing in this package performs I/O. Stores live under
// internal/infrastructure/persistence and implement the Store interface.
package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/alem-hub/study-analytics/internal/domain/shared"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// DailyAggregate is the authoritative counter row for one user on one
// calendar day. Every weekly and monthly view is folded from these rows.
type DailyAggregate struct {
	UserID string `json:"user_id"`

	// Date is the calendar day key, YYYY-MM-DD in the service timezone.
	Date string `json:"date"`

	TotalActivities      int `json:"total_activities"`
	TotalTimeSpent       int `json:"total_time_spent"` // seconds
	QuestionsAttempted   int `json:"questions_attempted"`
	QuestionsCorrect     int `json:"questions_correct"`
	SessionCount         int `json:"session_count"`
	AverageSessionLength int `json:"average_session_length"` // seconds

	LessonsCompleted      int `json:"lessons_completed"`
	VideoLessonsCompleted int `json:"video_lessons_completed"`
	FlashcardsReviewed    int `json:"flashcards_reviewed"`
	MockExamsTaken        int `json:"mock_exams_taken"`
	AITutorInteractions   int `json:"ai_tutor_interactions"`
	DashboardVisits       int `json:"dashboard_visits"`
	TopicSelections       int `json:"topic_selections"`

	StreakDays        int `json:"streak_days"`
	ProductivityScore int `json:"productivity_score"`

	WeakAreas       []string `json:"weak_areas"`
	StrongAreas     []string `json:"strong_areas"`
	Recommendations []string `json:"recommendations"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEmptyDay returns a zeroed row for (userID, date). It is both the read
// path's "no row yet" value and the row written by the daily reset.
func NewEmptyDay(userID, date string) DailyAggregate {
	return DailyAggregate{
		UserID:          userID,
		Date:            date,
		WeakAreas:       []string{},
		StrongAreas:     []string{},
		Recommendations: []string{},
	}
}

// Validate checks the row key and that no counter is negative.
func (d DailyAggregate) Validate() error {
	if d.UserID == "" {
		return shared.ErrEmptyUserID
	}
	if !ValidDate(d.Date) {
		return shared.NewDomainError("analytics", "Validate", shared.ErrInvalidInput,
			fmt.Sprintf("invalid date key %q", d.Date))
	}
	for _, v := range []int{
		d.TotalActivities, d.TotalTimeSpent, d.QuestionsAttempted, d.QuestionsCorrect,
		d.SessionCount, d.AverageSessionLength, d.LessonsCompleted, d.VideoLessonsCompleted,
		d.FlashcardsReviewed, d.MockExamsTaken, d.AITutorInteractions, d.DashboardVisits,
		d.TopicSelections, d.StreakDays, d.ProductivityScore,
	} {
		if v < 0 {
			return shared.NewDomainError("analytics", "Validate", shared.ErrNegativeValue,
				"counters cannot be negative")
		}
	}
	return nil
}

// DailyAccuracy returns round(correct/attempted*100), or 0 without attempts.
func (d DailyAggregate) DailyAccuracy() int {
	return Accuracy(d.QuestionsCorrect, d.QuestionsAttempted)
}

// StudyTimeMinutes returns whole minutes studied.
func (d DailyAggregate) StudyTimeMinutes() int {
	return d.TotalTimeSpent / 60
}

// IsActive reports whether at least one activity was recorded.
func (d DailyAggregate) IsActive() bool {
	return d.TotalActivities > 0
}

// Clone returns a deep copy, so cached values never share slices with
// rows that are still being mutated.
func (d DailyAggregate) Clone() DailyAggregate {
	c := d
	c.WeakAreas = append([]string{}, d.WeakAreas...)
	c.StrongAreas = append([]string{}, d.StrongAreas...)
	c.Recommendations = append([]string{}, d.Recommendations...)
	return c
}

// Refresh recomputes the derived fields of the row: streak (chained from the
// previous day's row, which may be nil), productivity score, and per-day
// recommendations. Stores call it on every write.
func (d *DailyAggregate) Refresh(previous *DailyAggregate) {
	d.StreakDays = ChainStreak(previous, *d)
	d.ProductivityScore = ProductivityScore(*d)
	d.Recommendations = DailyRecommendations(*d)
}

// Accuracy returns round(correct/attempted*100) clamped to [0,100],
// or 0 when attempted is not positive.
func Accuracy(correct, attempted int) int {
	if attempted <= 0 || correct <= 0 {
		return 0
	}
	acc := int(math.Round(float64(correct) / float64(attempted) * 100))
	if acc > 100 {
		return 100
	}
	return acc
}

// ══════════════════════════════════════════════════════════════════════════════
// DATE KEYS
// ══════════════════════════════════════════════════════════════════════════════

// DateKey formats t as the row date key.
func DateKey(t time.Time) string {
	return timeutil.FormatDateStr(t)
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD key.
func ValidDate(s string) bool {
	_, err := time.Parse(timeutil.FormatDate, s)
	return err == nil
}

// PreviousDate returns the key of the day before date, or "" if date is
// malformed.
func PreviousDate(date string) string {
	t, err := time.Parse(timeutil.FormatDate, date)
	if err != nil {
		return ""
	}
	return DateKey(t.AddDate(0, 0, -1))
}

// ══════════════════════════════════════════════════════════════════════════════
// DELTA
// ══════════════════════════════════════════════════════════════════════════════

// Delta is a set of counter increments applied atomically to one day row.
type Delta struct {
	Activities            int
	TimeSpent             int // seconds
	QuestionsAttempted    int
	QuestionsCorrect      int
	Sessions              int
	SessionSeconds        int // length of the sessions counted in Sessions
	LessonsCompleted      int
	VideoLessonsCompleted int
	FlashcardsReviewed    int
	MockExamsTaken        int
	AITutorInteractions   int
	DashboardVisits       int
	TopicSelections       int

	WeakArea   string
	StrongArea string
}

// IsZero reports whether applying d would change nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Validate rejects negative increments; counters only ever grow within a day.
func (d Delta) Validate() error {
	for _, v := range []int{
		d.Activities, d.TimeSpent, d.QuestionsAttempted, d.QuestionsCorrect, d.Sessions,
		d.SessionSeconds, d.LessonsCompleted, d.VideoLessonsCompleted, d.FlashcardsReviewed,
		d.MockExamsTaken, d.AITutorInteractions, d.DashboardVisits, d.TopicSelections,
	} {
		if v < 0 {
			return shared.NewDomainError("analytics", "ApplyDelta", shared.ErrNegativeValue,
				"increments cannot be negative")
		}
	}
	if d.QuestionsCorrect > d.QuestionsAttempted {
		return shared.NewDomainError("analytics", "ApplyDelta", shared.ErrValueOutOfRange,
			"correct answers exceed attempts")
	}
	return nil
}

// ApplyTo adds d to row. The running average session length is updated
// from the sessions carried by d. Derived fields are not refreshed here.
func (d Delta) ApplyTo(row *DailyAggregate) {
	if d.Sessions > 0 {
		total := row.AverageSessionLength*row.SessionCount + d.SessionSeconds
		row.SessionCount += d.Sessions
		row.AverageSessionLength = total / row.SessionCount
	}

	row.TotalActivities += d.Activities
	row.TotalTimeSpent += d.TimeSpent
	row.QuestionsAttempted += d.QuestionsAttempted
	row.QuestionsCorrect += d.QuestionsCorrect
	row.LessonsCompleted += d.LessonsCompleted
	row.VideoLessonsCompleted += d.VideoLessonsCompleted
	row.FlashcardsReviewed += d.FlashcardsReviewed
	row.MockExamsTaken += d.MockExamsTaken
	row.AITutorInteractions += d.AITutorInteractions
	row.DashboardVisits += d.DashboardVisits
	row.TopicSelections += d.TopicSelections

	row.WeakAreas = appendUnique(row.WeakAreas, d.WeakArea)
	row.StrongAreas = appendUnique(row.StrongAreas, d.StrongArea)
}

func appendUnique(list []string, v string) []string {
	if list == nil {
		list = []string{}
	}
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
