package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
)

// DailyAnalyticsRepository implements analytics.Store on PostgreSQL.
type DailyAnalyticsRepository struct {
	conn         *Connection
	consistent   bool
	queryTimeout time.Duration
}

// RepositoryOption configures a DailyAnalyticsRepository.
type RepositoryOption func(*DailyAnalyticsRepository)

// WithQueryTimeout bounds every store call, including its transaction.
// Zero leaves the caller's deadline alone.
func WithQueryTimeout(d time.Duration) RepositoryOption {
	return func(r *DailyAnalyticsRepository) { r.queryTimeout = d }
}

// NewDailyAnalyticsRepository creates a store on conn. consistent should be
// true only when every read goes to the primary that took the write (no
// read replicas or transaction-mode poolers in between).
func NewDailyAnalyticsRepository(conn *Connection, consistent bool, opts ...RepositoryOption) *DailyAnalyticsRepository {
	r := &DailyAnalyticsRepository{conn: conn, consistent: consistent}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DailyAnalyticsRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

// Compile-time check.
var _ analytics.Store = (*DailyAnalyticsRepository)(nil)

const dailyColumns = `
	user_id, date::text,
	total_activities, total_time_spent, questions_attempted, questions_correct,
	session_count, average_session_length,
	lessons_completed, video_lessons_completed, flashcards_reviewed, mock_exams_taken,
	ai_tutor_interactions, dashboard_visits, topic_selections,
	streak_days, productivity_score,
	weak_areas, strong_areas, recommendations,
	created_at, updated_at`

func scanDaily(row pgx.Row) (*analytics.DailyAggregate, error) {
	var d analytics.DailyAggregate
	err := row.Scan(
		&d.UserID, &d.Date,
		&d.TotalActivities, &d.TotalTimeSpent, &d.QuestionsAttempted, &d.QuestionsCorrect,
		&d.SessionCount, &d.AverageSessionLength,
		&d.LessonsCompleted, &d.VideoLessonsCompleted, &d.FlashcardsReviewed, &d.MockExamsTaken,
		&d.AITutorInteractions, &d.DashboardVisits, &d.TopicSelections,
		&d.StreakDays, &d.ProductivityScore,
		&d.WeakAreas, &d.StrongAreas, &d.Recommendations,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDaily(rows pgx.Rows) ([]analytics.DailyAggregate, error) {
	defer rows.Close()

	out := make([]analytics.DailyAggregate, 0)
	for rows.Next() {
		d, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func notFound(op, userID, date string) error {
	return shared.NewDomainError("store", op, shared.ErrNotFound,
		fmt.Sprintf("no row for %s on %s", userID, date))
}

// GetDay returns the row for one day.
func (r *DailyAnalyticsRepository) GetDay(ctx context.Context, userID, date string) (*analytics.DailyAggregate, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	d, err := scanDaily(r.conn.QueryRow(ctx,
		`SELECT `+dailyColumns+` FROM daily_analytics WHERE user_id = $1 AND date = $2::date`,
		userID, date))
	if err != nil {
		if IsNoRows(err) {
			return nil, notFound("GetDay", userID, date)
		}
		return nil, shared.StoreError("GetDay", err)
	}
	return d, nil
}

// GetRange returns rows in [from, to], ascending.
func (r *DailyAnalyticsRepository) GetRange(ctx context.Context, userID, from, to string) ([]analytics.DailyAggregate, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx,
		`SELECT `+dailyColumns+` FROM daily_analytics
		 WHERE user_id = $1 AND date BETWEEN $2::date AND $3::date
		 ORDER BY date ASC`,
		userID, from, to)
	if err != nil {
		return nil, shared.StoreError("GetRange", err)
	}
	out, err := collectDaily(rows)
	if err != nil {
		return nil, shared.StoreError("GetRange", err)
	}
	return out, nil
}

// GetRecent returns the most recent rows, descending.
func (r *DailyAnalyticsRepository) GetRecent(ctx context.Context, userID string, limit int) ([]analytics.DailyAggregate, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 30
	}
	rows, err := r.conn.Query(ctx,
		`SELECT `+dailyColumns+` FROM daily_analytics
		 WHERE user_id = $1
		 ORDER BY date DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, shared.StoreError("GetRecent", err)
	}
	out, err := collectDaily(rows)
	if err != nil {
		return nil, shared.StoreError("GetRecent", err)
	}
	return out, nil
}

// DeleteDay removes one row.
func (r *DailyAnalyticsRepository) DeleteDay(ctx context.Context, userID, date string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.conn.Exec(ctx,
		`DELETE FROM daily_analytics WHERE user_id = $1 AND date = $2::date`,
		userID, date); err != nil {
		return shared.StoreError("DeleteDay", err)
	}
	return nil
}

// UpsertDay inserts or fully replaces the row. created_at survives a replace.
func (r *DailyAnalyticsRepository) UpsertDay(ctx context.Context, row analytics.DailyAggregate) error {
	if err := row.Validate(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.conn.Exec(ctx, `
		INSERT INTO daily_analytics (
			user_id, date,
			total_activities, total_time_spent, questions_attempted, questions_correct,
			session_count, average_session_length,
			lessons_completed, video_lessons_completed, flashcards_reviewed, mock_exams_taken,
			ai_tutor_interactions, dashboard_visits, topic_selections,
			streak_days, productivity_score,
			weak_areas, strong_areas, recommendations,
			created_at, updated_at
		) VALUES (
			$1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, NOW(), NOW()
		)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_activities = EXCLUDED.total_activities,
			total_time_spent = EXCLUDED.total_time_spent,
			questions_attempted = EXCLUDED.questions_attempted,
			questions_correct = EXCLUDED.questions_correct,
			session_count = EXCLUDED.session_count,
			average_session_length = EXCLUDED.average_session_length,
			lessons_completed = EXCLUDED.lessons_completed,
			video_lessons_completed = EXCLUDED.video_lessons_completed,
			flashcards_reviewed = EXCLUDED.flashcards_reviewed,
			mock_exams_taken = EXCLUDED.mock_exams_taken,
			ai_tutor_interactions = EXCLUDED.ai_tutor_interactions,
			dashboard_visits = EXCLUDED.dashboard_visits,
			topic_selections = EXCLUDED.topic_selections,
			streak_days = EXCLUDED.streak_days,
			productivity_score = EXCLUDED.productivity_score,
			weak_areas = EXCLUDED.weak_areas,
			strong_areas = EXCLUDED.strong_areas,
			recommendations = EXCLUDED.recommendations,
			updated_at = NOW()`,
		row.UserID, row.Date,
		row.TotalActivities, row.TotalTimeSpent, row.QuestionsAttempted, row.QuestionsCorrect,
		row.SessionCount, row.AverageSessionLength,
		row.LessonsCompleted, row.VideoLessonsCompleted, row.FlashcardsReviewed, row.MockExamsTaken,
		row.AITutorInteractions, row.DashboardVisits, row.TopicSelections,
		row.StreakDays, row.ProductivityScore,
		nonNil(row.WeakAreas), nonNil(row.StrongAreas), nonNil(row.Recommendations),
	)
	if err != nil {
		return shared.StoreError("UpsertDay", err)
	}
	return nil
}

// IncrementDay adds delta with a single upsert and then refreshes the derived
// columns. Both statements run in one transaction; the upsert's row lock
// serializes concurrent increments for the same day.
func (r *DailyAnalyticsRepository) IncrementDay(ctx context.Context, userID, date string, delta analytics.Delta) (*analytics.DailyAggregate, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}
	if err := analytics.NewEmptyDay(userID, date).Validate(); err != nil {
		return nil, err
	}

	initialAvg := 0
	if delta.Sessions > 0 {
		initialAvg = delta.SessionSeconds / delta.Sessions
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var written *analytics.DailyAggregate
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		row, err := scanDaily(tx.QueryRow(ctx, `
			INSERT INTO daily_analytics AS d (
				user_id, date,
				total_activities, total_time_spent, questions_attempted, questions_correct,
				session_count, average_session_length,
				lessons_completed, video_lessons_completed, flashcards_reviewed, mock_exams_taken,
				ai_tutor_interactions, dashboard_visits, topic_selections,
				weak_areas, strong_areas
			) VALUES (
				$1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				CASE WHEN $16 = '' THEN '{}'::text[] ELSE ARRAY[$16] END,
				CASE WHEN $17 = '' THEN '{}'::text[] ELSE ARRAY[$17] END
			)
			ON CONFLICT (user_id, date) DO UPDATE SET
				total_activities = d.total_activities + EXCLUDED.total_activities,
				total_time_spent = d.total_time_spent + EXCLUDED.total_time_spent,
				questions_attempted = d.questions_attempted + EXCLUDED.questions_attempted,
				questions_correct = d.questions_correct + EXCLUDED.questions_correct,
				session_count = d.session_count + EXCLUDED.session_count,
				average_session_length = CASE
					WHEN EXCLUDED.session_count > 0 THEN
						(d.average_session_length * d.session_count + $18) / (d.session_count + EXCLUDED.session_count)
					ELSE d.average_session_length END,
				lessons_completed = d.lessons_completed + EXCLUDED.lessons_completed,
				video_lessons_completed = d.video_lessons_completed + EXCLUDED.video_lessons_completed,
				flashcards_reviewed = d.flashcards_reviewed + EXCLUDED.flashcards_reviewed,
				mock_exams_taken = d.mock_exams_taken + EXCLUDED.mock_exams_taken,
				ai_tutor_interactions = d.ai_tutor_interactions + EXCLUDED.ai_tutor_interactions,
				dashboard_visits = d.dashboard_visits + EXCLUDED.dashboard_visits,
				topic_selections = d.topic_selections + EXCLUDED.topic_selections,
				weak_areas = CASE WHEN $16 = '' OR $16 = ANY(d.weak_areas)
					THEN d.weak_areas ELSE array_append(d.weak_areas, $16) END,
				strong_areas = CASE WHEN $17 = '' OR $17 = ANY(d.strong_areas)
					THEN d.strong_areas ELSE array_append(d.strong_areas, $17) END,
				updated_at = NOW()
			RETURNING `+dailyColumns,
			userID, date,
			delta.Activities, delta.TimeSpent, delta.QuestionsAttempted, delta.QuestionsCorrect,
			delta.Sessions, initialAvg,
			delta.LessonsCompleted, delta.VideoLessonsCompleted, delta.FlashcardsReviewed, delta.MockExamsTaken,
			delta.AITutorInteractions, delta.DashboardVisits, delta.TopicSelections,
			delta.WeakArea, delta.StrongArea, delta.SessionSeconds,
		))
		if err != nil {
			return err
		}

		prev, err := scanDaily(tx.QueryRow(ctx,
			`SELECT `+dailyColumns+` FROM daily_analytics WHERE user_id = $1 AND date = $2::date - 1`,
			userID, date))
		if err != nil && !IsNoRows(err) {
			return err
		}

		row.Refresh(prev)
		row.UpdatedAt = time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			UPDATE daily_analytics
			SET streak_days = $3, productivity_score = $4, recommendations = $5
			WHERE user_id = $1 AND date = $2::date`,
			userID, date, row.StreakDays, row.ProductivityScore, nonNil(row.Recommendations),
		); err != nil {
			return err
		}

		written = row
		return nil
	})
	if err != nil {
		return nil, shared.StoreError("IncrementDay", err)
	}
	return written, nil
}

// ConsistentReads reports whether reads observe preceding writes.
func (r *DailyAnalyticsRepository) ConsistentReads() bool {
	return r.consistent
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
