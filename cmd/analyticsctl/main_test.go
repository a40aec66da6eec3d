package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-analytics/config"
	"github.com/alem-hub/study-analytics/internal/bootstrap"
	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/infrastructure/persistence/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "analyticsctl-test",
			Environment: config.EnvDevelopment,
			Timezone:    "UTC",
			Location:    time.UTC,
		},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Redis:    config.RedisConfig{Disabled: true},
		Analytics: config.AnalyticsConfig{
			CacheTTL:        time.Minute,
			FetchTimeout:    time.Second,
			SweepInterval:   time.Minute,
			WeekDays:        7,
			MonthDays:       30,
			TrackingWorkers: 1,
		},
	}
}

// sharedStore opens every command against the same memory store.
func sharedStore(store analytics.Store) opener {
	return func(ctx context.Context, _ bool) (*bootstrap.Runtime, error) {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		return bootstrap.Open(ctx, testConfig(), log, bootstrap.Options{Store: store})
	}
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddTimeThenShow(t *testing.T) {
	open := sharedStore(memory.NewStore())

	out, err := execute(t, open, "add-time", "u1", "90")
	require.NoError(t, err)
	assert.Contains(t, out, "90s total, 1 activities")

	out, err = execute(t, open, "show", "u1", "--view", "today")
	require.NoError(t, err)

	var today analytics.TodayProgress
	require.NoError(t, json.Unmarshal([]byte(out), &today))
	assert.Equal(t, 90, today.TotalTimeSpent)
	assert.Equal(t, "u1", today.UserID)
}

func TestTrackAndReset(t *testing.T) {
	open := sharedStore(memory.NewStore())

	out, err := execute(t, open, "track", "u1", "lesson_completed", "--seconds", "60", "--area", "algebra")
	require.NoError(t, err)
	assert.Contains(t, out, "tracked lesson_completed for u1")

	out, err = execute(t, open, "show", "u1")
	require.NoError(t, err)
	var rt analytics.RealTimeAnalytics
	require.NoError(t, json.Unmarshal([]byte(out), &rt))
	assert.Equal(t, 60, rt.Today.TotalTimeSpent)

	out, err = execute(t, open, "reset", "u1")
	require.NoError(t, err)
	rt = analytics.RealTimeAnalytics{}
	require.NoError(t, json.Unmarshal([]byte(out), &rt))
	assert.Equal(t, 0, rt.Today.TotalTimeSpent)
	assert.Equal(t, 0, rt.Today.TotalActivities)
}

func TestCommandErrors(t *testing.T) {
	open := sharedStore(memory.NewStore())

	tests := []struct {
		name string
		args []string
	}{
		{"unknown view", []string{"show", "u1", "--view", "yearly"}},
		{"non-numeric seconds", []string{"add-time", "u1", "abc"}},
		{"non-positive seconds", []string{"add-time", "u1", "0"}},
		{"unknown activity", []string{"track", "u1", "sleeping"}},
		{"missing args", []string{"reset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, open, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMigrateReportsDriver(t *testing.T) {
	var migrated bool
	open := func(ctx context.Context, migrate bool) (*bootstrap.Runtime, error) {
		migrated = migrate
		return sharedStore(memory.NewStore())(ctx, migrate)
	}

	out, err := execute(t, open, "migrate")
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Contains(t, out, "schema up to date (memory)")
}

func TestMigrateStatusAndDownWithoutPostgres(t *testing.T) {
	open := sharedStore(memory.NewStore())

	out, err := execute(t, open, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is created on open (memory)")

	_, err = execute(t, open, "migrate", "down")
	assert.ErrorContains(t, err, "rollback needs the postgres driver")
}

func TestJobsInfoAndRun(t *testing.T) {
	open := sharedStore(memory.NewStore())

	out, err := execute(t, open, "jobs", "info", "sweep_view_cache")
	require.NoError(t, err)
	assert.Contains(t, out, "sweep_view_cache (@every 1m0s)")

	out, err = execute(t, open, "jobs", "run", "day_rollover")
	require.NoError(t, err)
	assert.Contains(t, out, "day_rollover finished in")

	_, err = execute(t, open, "jobs", "run", "nightly_backup")
	assert.ErrorContains(t, err, "nightly_backup")
}
