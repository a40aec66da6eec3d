// Package sqlite implements analytics.Store on an embedded SQLite file
// (modernc.org/sqlite, no cgo). It backs local development, the admin CLI,
// and store tests that need real SQL without a server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
)

const timeLayout = time.RFC3339Nano

// Store is the SQLite daily-row store.
//
// The pool is pinned to one connection, so every transaction runs alone and
// read-modify-write increments inside a transaction cannot interleave.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithQueryTimeout bounds every store call, including the wait for the
// single connection. Zero leaves the caller's deadline alone.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) { s.queryTimeout = d }
}

var _ analytics.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS daily_analytics (
  user_id TEXT NOT NULL,
  date TEXT NOT NULL,
  total_activities INTEGER NOT NULL DEFAULT 0,
  total_time_spent INTEGER NOT NULL DEFAULT 0,
  questions_attempted INTEGER NOT NULL DEFAULT 0,
  questions_correct INTEGER NOT NULL DEFAULT 0,
  session_count INTEGER NOT NULL DEFAULT 0,
  average_session_length INTEGER NOT NULL DEFAULT 0,
  lessons_completed INTEGER NOT NULL DEFAULT 0,
  video_lessons_completed INTEGER NOT NULL DEFAULT 0,
  flashcards_reviewed INTEGER NOT NULL DEFAULT 0,
  mock_exams_taken INTEGER NOT NULL DEFAULT 0,
  ai_tutor_interactions INTEGER NOT NULL DEFAULT 0,
  dashboard_visits INTEGER NOT NULL DEFAULT 0,
  topic_selections INTEGER NOT NULL DEFAULT 0,
  streak_days INTEGER NOT NULL DEFAULT 0,
  productivity_score INTEGER NOT NULL DEFAULT 0,
  weak_areas TEXT NOT NULL DEFAULT '[]',
  strong_areas TEXT NOT NULL DEFAULT '[]',
  recommendations TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (user_id, date)
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create daily_analytics table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

const selectColumns = `
SELECT user_id, date,
  total_activities, total_time_spent, questions_attempted, questions_correct,
  session_count, average_session_length,
  lessons_completed, video_lessons_completed, flashcards_reviewed, mock_exams_taken,
  ai_tutor_interactions, dashboard_visits, topic_selections,
  streak_days, productivity_score,
  weak_areas, strong_areas, recommendations,
  created_at, updated_at
FROM daily_analytics`

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (*analytics.DailyAggregate, error) {
	var (
		d                    analytics.DailyAggregate
		weak, strong, recs   string
		createdAt, updatedAt string
	)
	err := sc.Scan(
		&d.UserID, &d.Date,
		&d.TotalActivities, &d.TotalTimeSpent, &d.QuestionsAttempted, &d.QuestionsCorrect,
		&d.SessionCount, &d.AverageSessionLength,
		&d.LessonsCompleted, &d.VideoLessonsCompleted, &d.FlashcardsReviewed, &d.MockExamsTaken,
		&d.AITutorInteractions, &d.DashboardVisits, &d.TopicSelections,
		&d.StreakDays, &d.ProductivityScore,
		&weak, &strong, &recs,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeList(weak, &d.WeakAreas); err != nil {
		return nil, err
	}
	if err := decodeList(strong, &d.StrongAreas); err != nil {
		return nil, err
	}
	if err := decodeList(recs, &d.Recommendations); err != nil {
		return nil, err
	}
	d.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	d.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &d, nil
}

func decodeList(raw string, dst *[]string) error {
	*dst = []string{}
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode list column: %w", err)
	}
	return nil
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func queryRows(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, query string, args ...any) ([]analytics.DailyAggregate, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]analytics.DailyAggregate, 0)
	for rows.Next() {
		d, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetDay returns the row for one day.
func (s *Store) GetDay(ctx context.Context, userID, date string) (*analytics.DailyAggregate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := scanRow(s.db.QueryRowContext(ctx, selectColumns+` WHERE user_id = ? AND date = ?`, userID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NewDomainError("store", "GetDay", shared.ErrNotFound,
			fmt.Sprintf("no row for %s on %s", userID, date))
	}
	if err != nil {
		return nil, shared.StoreError("GetDay", err)
	}
	return d, nil
}

// GetRange returns rows in [from, to], ascending.
func (s *Store) GetRange(ctx context.Context, userID, from, to string) ([]analytics.DailyAggregate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := queryRows(ctx, s.db,
		selectColumns+` WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date ASC`,
		userID, from, to)
	if err != nil {
		return nil, shared.StoreError("GetRange", err)
	}
	return out, nil
}

// GetRecent returns the most recent rows, descending.
func (s *Store) GetRecent(ctx context.Context, userID string, limit int) ([]analytics.DailyAggregate, error) {
	if limit <= 0 {
		limit = 30
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := queryRows(ctx, s.db,
		selectColumns+` WHERE user_id = ? ORDER BY date DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, shared.StoreError("GetRecent", err)
	}
	return out, nil
}

// DeleteDay removes one row.
func (s *Store) DeleteDay(ctx context.Context, userID, date string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM daily_analytics WHERE user_id = ? AND date = ?`, userID, date); err != nil {
		return shared.StoreError("DeleteDay", err)
	}
	return nil
}

const upsertStmt = `
INSERT INTO daily_analytics (
  user_id, date,
  total_activities, total_time_spent, questions_attempted, questions_correct,
  session_count, average_session_length,
  lessons_completed, video_lessons_completed, flashcards_reviewed, mock_exams_taken,
  ai_tutor_interactions, dashboard_visits, topic_selections,
  streak_days, productivity_score,
  weak_areas, strong_areas, recommendations,
  created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, date) DO UPDATE SET
  total_activities=excluded.total_activities,
  total_time_spent=excluded.total_time_spent,
  questions_attempted=excluded.questions_attempted,
  questions_correct=excluded.questions_correct,
  session_count=excluded.session_count,
  average_session_length=excluded.average_session_length,
  lessons_completed=excluded.lessons_completed,
  video_lessons_completed=excluded.video_lessons_completed,
  flashcards_reviewed=excluded.flashcards_reviewed,
  mock_exams_taken=excluded.mock_exams_taken,
  ai_tutor_interactions=excluded.ai_tutor_interactions,
  dashboard_visits=excluded.dashboard_visits,
  topic_selections=excluded.topic_selections,
  streak_days=excluded.streak_days,
  productivity_score=excluded.productivity_score,
  weak_areas=excluded.weak_areas,
  strong_areas=excluded.strong_areas,
  recommendations=excluded.recommendations,
  updated_at=excluded.updated_at;
`

func upsert(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, row *analytics.DailyAggregate) error {
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	_, err := exec.ExecContext(ctx, upsertStmt,
		row.UserID, row.Date,
		row.TotalActivities, row.TotalTimeSpent, row.QuestionsAttempted, row.QuestionsCorrect,
		row.SessionCount, row.AverageSessionLength,
		row.LessonsCompleted, row.VideoLessonsCompleted, row.FlashcardsReviewed, row.MockExamsTaken,
		row.AITutorInteractions, row.DashboardVisits, row.TopicSelections,
		row.StreakDays, row.ProductivityScore,
		encodeList(row.WeakAreas), encodeList(row.StrongAreas), encodeList(row.Recommendations),
		row.CreatedAt.Format(timeLayout), row.UpdatedAt.Format(timeLayout),
	)
	return err
}

// UpsertDay inserts or fully replaces the row.
func (s *Store) UpsertDay(ctx context.Context, row analytics.DailyAggregate) error {
	if err := row.Validate(); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := upsert(ctx, s.db, &row); err != nil {
		return shared.StoreError("UpsertDay", err)
	}
	return nil
}

// IncrementDay applies delta inside one transaction.
func (s *Store) IncrementDay(ctx context.Context, userID, date string, delta analytics.Delta) (*analytics.DailyAggregate, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}
	if err := analytics.NewEmptyDay(userID, date).Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, shared.StoreError("IncrementDay", err)
	}
	defer func() { _ = tx.Rollback() }()

	load := func(day string) (*analytics.DailyAggregate, error) {
		d, err := scanRow(tx.QueryRowContext(ctx, selectColumns+` WHERE user_id = ? AND date = ?`, userID, day))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return d, err
	}

	current, err := load(date)
	if err != nil {
		return nil, shared.StoreError("IncrementDay", err)
	}
	if current == nil {
		empty := analytics.NewEmptyDay(userID, date)
		current = &empty
	}
	prev, err := load(analytics.PreviousDate(date))
	if err != nil {
		return nil, shared.StoreError("IncrementDay", err)
	}

	delta.ApplyTo(current)
	current.Refresh(prev)

	// upsert stamps current, so new rows come back with their timestamps.
	if err := upsert(ctx, tx, current); err != nil {
		return nil, shared.StoreError("IncrementDay", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, shared.StoreError("IncrementDay", err)
	}
	return current, nil
}

// ConsistentReads is true: one connection, one file.
func (s *Store) ConsistentReads() bool {
	return true
}
