// Package storetest holds the behavioural checks every analytics.Store
// implementation must pass. Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) analytics.Store

// Run executes the store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetDay missing row is not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetDay(context.Background(), "u1", "2026-10-18")
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
		assert.False(t, shared.IsStore(err))
	})

	t.Run("UpsertDay round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		row := analytics.NewEmptyDay("u1", "2026-10-18")
		row.TotalActivities = 4
		row.TotalTimeSpent = 900
		row.QuestionsAttempted, row.QuestionsCorrect = 5, 4
		row.WeakAreas = []string{"algebra"}
		row.StrongAreas = []string{"history", "biology"}
		require.NoError(t, s.UpsertDay(ctx, row))

		got, err := s.GetDay(ctx, "u1", "2026-10-18")
		require.NoError(t, err)
		assert.Equal(t, 4, got.TotalActivities)
		assert.Equal(t, 900, got.TotalTimeSpent)
		assert.Equal(t, 80, got.DailyAccuracy())
		assert.Equal(t, []string{"algebra"}, got.WeakAreas)
		assert.Equal(t, []string{"history", "biology"}, got.StrongAreas)
		assert.NotNil(t, got.Recommendations)

		zero := analytics.NewEmptyDay("u1", "2026-10-18")
		require.NoError(t, s.UpsertDay(ctx, zero))
		got, err = s.GetDay(ctx, "u1", "2026-10-18")
		require.NoError(t, err)
		assert.Equal(t, 0, got.TotalActivities, "upsert replaces the whole row")
		assert.Empty(t, got.WeakAreas)
	})

	t.Run("UpsertDay rejects invalid rows", func(t *testing.T) {
		s := newStore(t)
		err := s.UpsertDay(context.Background(), analytics.NewEmptyDay("", "2026-10-18"))
		assert.True(t, shared.IsValidation(err))

		row := analytics.NewEmptyDay("u1", "2026-10-18")
		row.TotalTimeSpent = -1
		assert.True(t, shared.IsValidation(s.UpsertDay(context.Background(), row)))
	})

	t.Run("IncrementDay creates and accumulates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		delta := analytics.Delta{Activities: 1, TimeSpent: 45}

		first, err := s.IncrementDay(ctx, "u1", "2026-10-18", delta)
		require.NoError(t, err)
		assert.False(t, first.CreatedAt.IsZero())
		assert.False(t, first.UpdatedAt.IsZero())

		row, err := s.IncrementDay(ctx, "u1", "2026-10-18", delta)
		require.NoError(t, err)
		assert.WithinDuration(t, first.CreatedAt, row.CreatedAt, time.Second)
		assert.Equal(t, 2, row.TotalActivities)
		assert.Equal(t, 90, row.TotalTimeSpent)
		assert.Equal(t, analytics.ProductivityScore(*row), row.ProductivityScore)
		assert.Equal(t, 1, row.StreakDays)

		got, err := s.GetDay(ctx, "u1", "2026-10-18")
		require.NoError(t, err)
		assert.Equal(t, 2, got.TotalActivities)
		assert.Equal(t, 90, got.TotalTimeSpent)
		assert.Equal(t, row.ProductivityScore, got.ProductivityScore)
	})

	t.Run("IncrementDay chains the streak from the previous day", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		one := analytics.Delta{Activities: 1}

		_, err := s.IncrementDay(ctx, "u1", "2026-10-16", one)
		require.NoError(t, err)
		_, err = s.IncrementDay(ctx, "u1", "2026-10-17", one)
		require.NoError(t, err)
		row, err := s.IncrementDay(ctx, "u1", "2026-10-18", one)
		require.NoError(t, err)
		assert.Equal(t, 3, row.StreakDays)

		nav, err := s.IncrementDay(ctx, "u2", "2026-10-18", analytics.Delta{DashboardVisits: 1})
		require.NoError(t, err)
		assert.Equal(t, 0, nav.StreakDays, "navigation alone keeps the day inactive")
	})

	t.Run("IncrementDay merges areas and sessions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.IncrementDay(ctx, "u1", "2026-10-18", analytics.Delta{Sessions: 1, SessionSeconds: 600})
		require.NoError(t, err)
		_, err = s.IncrementDay(ctx, "u1", "2026-10-18", analytics.Delta{Sessions: 1, SessionSeconds: 1200})
		require.NoError(t, err)
		_, err = s.IncrementDay(ctx, "u1", "2026-10-18", analytics.Delta{Activities: 1, QuestionsAttempted: 1, WeakArea: "algebra"})
		require.NoError(t, err)
		row, err := s.IncrementDay(ctx, "u1", "2026-10-18", analytics.Delta{Activities: 1, QuestionsAttempted: 1, WeakArea: "algebra"})
		require.NoError(t, err)

		assert.Equal(t, 2, row.SessionCount)
		assert.Equal(t, 900, row.AverageSessionLength)
		assert.Equal(t, []string{"algebra"}, row.WeakAreas)
		assert.Equal(t, 2, row.QuestionsAttempted)
	})

	t.Run("IncrementDay rejects negative deltas", func(t *testing.T) {
		s := newStore(t)
		_, err := s.IncrementDay(context.Background(), "u1", "2026-10-18", analytics.Delta{TimeSpent: -5})
		assert.True(t, shared.IsValidation(err))

		_, err = s.GetDay(context.Background(), "u1", "2026-10-18")
		assert.True(t, shared.IsNotFound(err), "no row is created on rejected deltas")
	})

	t.Run("IncrementDay is atomic under concurrency", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const writers = 20
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.IncrementDay(ctx, "u1", "2026-10-18", analytics.Delta{Activities: 1, TimeSpent: 30})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		row, err := s.GetDay(ctx, "u1", "2026-10-18")
		require.NoError(t, err)
		assert.Equal(t, writers, row.TotalActivities)
		assert.Equal(t, writers*30, row.TotalTimeSpent)
	})

	t.Run("GetRange is inclusive and ascending", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, d := range []string{"2026-10-18", "2026-10-10", "2026-10-12", "2026-10-11", "2026-10-19"} {
			_, err := s.IncrementDay(ctx, "u1", d, analytics.Delta{Activities: 1})
			require.NoError(t, err)
		}
		_, err := s.IncrementDay(ctx, "u2", "2026-10-12", analytics.Delta{Activities: 1})
		require.NoError(t, err)

		rows, err := s.GetRange(ctx, "u1", "2026-10-11", "2026-10-18")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "2026-10-11", rows[0].Date)
		assert.Equal(t, "2026-10-12", rows[1].Date)
		assert.Equal(t, "2026-10-18", rows[2].Date)

		empty, err := s.GetRange(ctx, "nobody", "2026-10-01", "2026-10-31")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("GetRecent is descending and limited", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, d := range []string{"2026-10-15", "2026-10-18", "2026-10-16", "2026-10-17"} {
			_, err := s.IncrementDay(ctx, "u1", d, analytics.Delta{Activities: 1})
			require.NoError(t, err)
		}

		rows, err := s.GetRecent(ctx, "u1", 3)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "2026-10-18", rows[0].Date)
		assert.Equal(t, "2026-10-17", rows[1].Date)
		assert.Equal(t, "2026-10-16", rows[2].Date)
	})

	t.Run("DeleteDay", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.IncrementDay(ctx, "u1", "2026-10-18", analytics.Delta{Activities: 1})
		require.NoError(t, err)

		require.NoError(t, s.DeleteDay(ctx, "u1", "2026-10-18"))
		_, err = s.GetDay(ctx, "u1", "2026-10-18")
		assert.True(t, shared.IsNotFound(err))

		assert.NoError(t, s.DeleteDay(ctx, "u1", "2026-10-18"), "deleting a missing row is not an error")
	})
}
