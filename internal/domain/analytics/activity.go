package analytics

import (
	"github.com/alem-hub/study-analytics/internal/domain/shared"
)

// ActivityType is a platform action reported by the frontend.
type ActivityType string

const (
	ActivityLessonCompleted      ActivityType = "lesson_completed"
	ActivityVideoLessonCompleted ActivityType = "video_lesson_completed"
	ActivityFlashcardReviewed    ActivityType = "flashcard_reviewed"
	ActivityMockExamTaken        ActivityType = "mock_exam_taken"
	ActivityAITutorInteraction   ActivityType = "ai_tutor_interaction"
	ActivityDashboardVisit       ActivityType = "dashboard_visit"
	ActivityTopicSelection       ActivityType = "topic_selection"
	ActivityQuestionAnswered     ActivityType = "question_answered"
	ActivitySessionStarted       ActivityType = "session_started"
)

// ActivityTypes lists every known type.
var ActivityTypes = []ActivityType{
	ActivityLessonCompleted,
	ActivityVideoLessonCompleted,
	ActivityFlashcardReviewed,
	ActivityMockExamTaken,
	ActivityAITutorInteraction,
	ActivityDashboardVisit,
	ActivityTopicSelection,
	ActivityQuestionAnswered,
	ActivitySessionStarted,
}

// ActivityMeta carries optional details of a tracked activity.
type ActivityMeta struct {
	// Correct applies to question_answered.
	Correct bool
	// SessionSeconds applies to session_started and adds study time to
	// learning activities.
	SessionSeconds int
	// Area is the topic the activity belongs to. A wrong answer marks it weak,
	// a correct one strong.
	Area string
}

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DeltaFor maps a tracked activity onto counter increments.
// Navigation events (dashboard visits, topic selections) bump only their own
// counter; learning events also count as an activity.
func DeltaFor(t ActivityType, meta ActivityMeta) (Delta, error) {
	if meta.SessionSeconds < 0 {
		return Delta{}, shared.ErrNonPositiveDuration
	}

	var d Delta
	switch t {
	case ActivityLessonCompleted:
		d.Activities, d.LessonsCompleted = 1, 1
	case ActivityVideoLessonCompleted:
		d.Activities, d.VideoLessonsCompleted = 1, 1
	case ActivityFlashcardReviewed:
		d.Activities, d.FlashcardsReviewed = 1, 1
	case ActivityMockExamTaken:
		d.Activities, d.MockExamsTaken = 1, 1
	case ActivityAITutorInteraction:
		d.Activities, d.AITutorInteractions = 1, 1
	case ActivityQuestionAnswered:
		d.Activities, d.QuestionsAttempted = 1, 1
		if meta.Correct {
			d.QuestionsCorrect = 1
			d.StrongArea = meta.Area
		} else {
			d.WeakArea = meta.Area
		}
	case ActivityDashboardVisit:
		d.DashboardVisits = 1
	case ActivityTopicSelection:
		d.TopicSelections = 1
	case ActivitySessionStarted:
		d.Sessions = 1
		d.SessionSeconds = meta.SessionSeconds
		return d, nil
	default:
		return Delta{}, shared.ErrUnknownActivity
	}

	if d.Activities > 0 {
		d.TimeSpent = meta.SessionSeconds
	}
	return d, nil
}
