package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
	viewcache "github.com/alem-hub/study-analytics/internal/infrastructure/cache"
	"github.com/alem-hub/study-analytics/internal/infrastructure/messaging"
	"github.com/alem-hub/study-analytics/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

var clock = timeutil.FixedClock{T: time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, bus shared.EventBus) (*Engine, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	e, err := New(Dependencies{
		Store:  store,
		Cache:  viewcache.NewTTLCache(time.Minute, viewcache.WithClock(clock)),
		Bus:    bus,
		Clock:  clock,
		Logger: discardLogger(),
	}, DefaultConfig())
	require.NoError(t, err)
	return e, store
}

func TestEngine_RealtimeReflectsWrites(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	rt, err := e.GetRealTimeAnalytics(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rt.FromCache)
	assert.Equal(t, 0, rt.Today.TotalActivities)
	assert.Equal(t, "Complete your first activity today", rt.NextMilestone)
	assert.Equal(t, []string{"Keep going to unlock achievements"}, rt.Achievements)

	rt, err = e.GetRealTimeAnalytics(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, rt.FromCache)

	_, err = e.AddStudyTime(ctx, "u1", 3600)
	require.NoError(t, err)

	rt, err = e.GetRealTimeAnalytics(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rt.FromCache, "a write invalidates the cached composite")
	assert.Equal(t, 3600, rt.Today.TotalTimeSpent)
	assert.Equal(t, 60, rt.Today.StudyTimeMinutes)
	assert.Equal(t, 1, rt.CurrentStreak)
	assert.Contains(t, rt.Achievements, "Studied for over an hour")
}

func TestEngine_TrackWithoutBusAppliesInline(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, nil)

	assert.True(t, e.TrackPlatformActivity(ctx, "u1", analytics.ActivityLessonCompleted, analytics.ActivityMeta{}))
	assert.True(t, e.TrackPlatformActivity(ctx, "u1", analytics.ActivitySessionStarted, analytics.ActivityMeta{SessionSeconds: 600}))
	assert.False(t, e.TrackPlatformActivity(ctx, "u1", "unknown", analytics.ActivityMeta{}))

	row, err := store.GetDay(ctx, "u1", "2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, 1, row.LessonsCompleted)
	assert.Equal(t, 1, row.SessionCount)
	assert.Equal(t, 600, row.AverageSessionLength)
}

func TestEngine_TrackThroughBusCarriesCorrelationID(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: discardLogger()})

	var (
		mu  sync.Mutex
		ids []string
	)
	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		if tracked, ok := event.(shared.ActivityTrackedEvent); ok {
			mu.Lock()
			ids = append(ids, tracked.CorrelationID)
			mu.Unlock()
		}
		return nil
	}))

	e, store := newEngine(t, bus)
	ctx := WithCorrelationID(context.Background(), "req-42")

	require.True(t, e.TrackPlatformActivity(ctx, "u1", analytics.ActivityQuestionAnswered, analytics.ActivityMeta{Correct: true}))

	row, err := store.GetDay(ctx, "u1", "2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, 1, row.QuestionsCorrect)
	assert.Equal(t, []string{"req-42"}, ids)
}

func TestEngine_ResetAndGetFreshAnalytics(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	_, err := e.AddStudyTime(ctx, "u1", 900)
	require.NoError(t, err)
	_, err = e.GetRealTimeAnalytics(ctx, "u1")
	require.NoError(t, err)

	rt, err := e.ResetAndGetFreshAnalytics(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rt.FromCache)
	assert.Equal(t, 0, rt.Today.TotalTimeSpent)
	assert.Equal(t, 0, rt.Today.TotalActivities)
	assert.Equal(t, 0, rt.CurrentStreak)

	today, err := e.GetTodayProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, today.TotalTimeSpent)
}

func TestEngine_ForceRefreshBypassesCache(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, nil)

	_, err := e.GetRealTimeAnalytics(ctx, "u1")
	require.NoError(t, err)

	// Written behind the engine's back, so nothing invalidates the cache.
	_, err = store.IncrementDay(ctx, "u1", "2026-10-18", analytics.Delta{Activities: 4})
	require.NoError(t, err)

	rt, err := e.GetRealTimeAnalytics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, rt.Today.TotalActivities)

	rt, err = e.ForceRefreshAnalytics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, rt.Today.TotalActivities)

	week, err := e.GetWeeklyProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, week.TotalActivities)
}

func TestEngine_ProgressAndInsights(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	_, err := e.AddStudyTime(ctx, "u1", 1200)
	require.NoError(t, err)

	month, err := e.GetMonthlyProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "October 2026", month.Month)
	assert.Equal(t, 1, month.ActiveDays)

	insights, err := e.GetStudyInsights(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, analytics.NotEnoughData, insights.PreferredStudyTime)
	assert.Contains(t, insights.Insights, "You're on a 1-day streak")
	assert.NotEmpty(t, insights.NextMilestone)
	assert.NotEmpty(t, insights.Recommendations)
}

func TestEngine_Validation(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	_, err := e.GetRealTimeAnalytics(ctx, "")
	assert.True(t, shared.IsValidation(err))

	_, err = e.AddStudyTime(ctx, "u1", 0)
	assert.True(t, shared.IsValidation(err))

	assert.True(t, shared.IsValidation(e.ResetDailyTimeSpent(ctx, "")))
}

// gatedStore holds the first GetDay after reading its snapshot until
// release is closed.
type gatedStore struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) GetDay(ctx context.Context, userID, date string) (*analytics.DailyAggregate, error) {
	row, err := s.Store.GetDay(ctx, userID, date)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return row, err
}

func TestEngine_ReadOverlappingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{
		Store:   memory.NewStore(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	e, err := New(Dependencies{
		Store:  store,
		Cache:  viewcache.NewTTLCache(time.Minute, viewcache.WithClock(clock)),
		Clock:  clock,
		Logger: discardLogger(),
	}, DefaultConfig())
	require.NoError(t, err)

	done := make(chan *analytics.RealTimeAnalytics, 1)
	go func() {
		rt, err := e.GetRealTimeAnalytics(ctx, "u1")
		assert.NoError(t, err)
		done <- rt
	}()

	<-store.entered
	_, err = e.AddStudyTime(ctx, "u1", 600)
	require.NoError(t, err)
	close(store.release)

	stale := <-done
	assert.Equal(t, 0, stale.Today.TotalTimeSpent, "the overlapping read saw the old snapshot")

	rt, err := e.GetRealTimeAnalytics(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rt.FromCache)
	assert.Equal(t, 1, rt.Today.TotalActivities)
	assert.Equal(t, 600, rt.Today.TotalTimeSpent)
}
