package analytics

import "math"

// Score weights.
const (
	activityWeight   = 2.0
	efficiencyWeight = 10.0
	accuracyWeight   = 0.5
	lessonWeight     = 5.0
	aiTutorWeight    = 2.0

	MaxProductivityScore = 100
)

// ProductivityScore blends volume, time efficiency, accuracy and completion:
//
//	2·activities + 10·(activities / max(minutes,1)) + 0.5·accuracy + 5·lessons + 2·aiTutor
//
// clamped to [0,100] and rounded. It is a pure function of the row.
func ProductivityScore(d DailyAggregate) int {
	minutes := d.StudyTimeMinutes()
	if minutes < 1 {
		minutes = 1
	}
	activities := float64(d.TotalActivities)

	raw := activityWeight*activities +
		efficiencyWeight*(activities/float64(minutes)) +
		accuracyWeight*float64(d.DailyAccuracy()) +
		lessonWeight*float64(d.LessonsCompleted) +
		aiTutorWeight*float64(d.AITutorInteractions)

	score := int(math.Round(raw))
	switch {
	case score < 0:
		return 0
	case score > MaxProductivityScore:
		return MaxProductivityScore
	}
	return score
}
