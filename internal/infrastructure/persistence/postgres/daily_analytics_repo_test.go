package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/infrastructure/persistence/storetest"
)

// Runs only when TEST_DATABASE_URL points at a disposable database.
func TestDailyAnalyticsRepository_Contract(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := NewConnection(ctx, DefaultConfig(url))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)

	storetest.Run(t, func(t *testing.T) analytics.Store {
		_, err := conn.Exec(ctx, `TRUNCATE daily_analytics`)
		require.NoError(t, err)
		return NewDailyAnalyticsRepository(conn, true)
	})
}

func TestMigrator_StatusAndRollback(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := NewConnection(ctx, DefaultConfig(url))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	m := NewMigrator(conn)
	_, err = m.Migrate(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = m.Migrate(context.Background())
	})

	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, len(GetMigrations()))
	for _, mig := range status {
		require.True(t, mig.IsApplied, "migration %d", mig.Version)
	}

	require.NoError(t, m.Rollback(ctx))

	status, err = m.Status(ctx)
	require.NoError(t, err)
	last := status[len(status)-1]
	require.False(t, last.IsApplied)

	n, err := m.Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestDailyAnalyticsRepository_QueryTimeout(t *testing.T) {
	r := NewDailyAnalyticsRepository(nil, false, WithQueryTimeout(2*time.Second))
	ctx, cancel := r.withTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, 500*time.Millisecond)

	r = NewDailyAnalyticsRepository(nil, false)
	ctx, cancel = r.withTimeout(context.Background())
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
