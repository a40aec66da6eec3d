package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_daily_analytics",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "daily_analytics_recent_index",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: DAILY ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One row per user per calendar day. Rows are only ever created through
-- INSERT ... ON CONFLICT (user_id, date), never a plain insert.
CREATE TABLE IF NOT EXISTS daily_analytics (
    user_id TEXT NOT NULL,
    date DATE NOT NULL,

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

    weak_areas TEXT[] NOT NULL DEFAULT '{}',
    strong_areas TEXT[] NOT NULL DEFAULT '{}',
    recommendations TEXT[] NOT NULL DEFAULT '{}',

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT daily_analytics_pkey PRIMARY KEY (user_id, date),
    CONSTRAINT valid_counters CHECK (
        total_activities >= 0 AND total_time_spent >= 0 AND
        questions_attempted >= 0 AND questions_correct >= 0 AND
        session_count >= 0 AND average_session_length >= 0
    ),
    CONSTRAINT valid_score CHECK (productivity_score BETWEEN 0 AND 100)
);
`

const migration001Down = `
DROP TABLE IF EXISTS daily_analytics;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: RECENT PROGRESS INDEX
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Streak calculation reads the most recent rows first.
CREATE INDEX IF NOT EXISTS idx_daily_analytics_user_date_desc
    ON daily_analytics (user_id, date DESC);
`

const migration002Down = `
DROP INDEX IF EXISTS idx_daily_analytics_user_date_desc;
`
