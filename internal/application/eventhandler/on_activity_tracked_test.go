package eventhandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-analytics/internal/application/command"
	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
	viewcache "github.com/alem-hub/study-analytics/internal/infrastructure/cache"
	"github.com/alem-hub/study-analytics/internal/infrastructure/messaging"
	"github.com/alem-hub/study-analytics/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

var clock = timeutil.FixedClock{T: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pipeline struct {
	store *memory.Store
	cache *viewcache.TTLCache
	track *command.TrackActivityHandler
}

func newPipeline(t *testing.T) pipeline {
	t.Helper()

	store := memory.NewStore()
	cache := viewcache.NewTTLCache(time.Minute, viewcache.WithClock(clock))
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		Logger: discardLogger(),
	})

	h := NewOnActivityTrackedHandler(store, cache, time.Second, discardLogger())
	require.NoError(t, h.Register(bus))

	return pipeline{
		store: store,
		cache: cache,
		track: command.NewTrackActivityHandler(bus, clock, discardLogger()),
	}
}

func TestOnActivityTracked_AppliesDeltas(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	p.cache.Put(ctx, analytics.CacheKey("u1", analytics.ViewToday), 1)

	track := func(typ analytics.ActivityType, meta analytics.ActivityMeta) {
		require.True(t, p.track.Handle(ctx, command.TrackActivityCommand{UserID: "u1", Type: typ, Meta: meta}))
	}
	track(analytics.ActivityLessonCompleted, analytics.ActivityMeta{SessionSeconds: 120})
	track(analytics.ActivityQuestionAnswered, analytics.ActivityMeta{Correct: true, Area: "algebra"})
	track(analytics.ActivityQuestionAnswered, analytics.ActivityMeta{Correct: false, Area: "geometry"})
	track(analytics.ActivityDashboardVisit, analytics.ActivityMeta{})

	row, err := p.store.GetDay(ctx, "u1", "2026-10-18")
	require.NoError(t, err)

	assert.Equal(t, 3, row.TotalActivities, "navigation does not count as an activity")
	assert.Equal(t, 1, row.LessonsCompleted)
	assert.Equal(t, 2, row.QuestionsAttempted)
	assert.Equal(t, 1, row.QuestionsCorrect)
	assert.Equal(t, 1, row.DashboardVisits)
	assert.Equal(t, 120, row.TotalTimeSpent)
	assert.Equal(t, []string{"algebra"}, row.StrongAreas)
	assert.Equal(t, []string{"geometry"}, row.WeakAreas)

	var v int
	assert.False(t, p.cache.Get(ctx, analytics.CacheKey("u1", analytics.ViewToday), &v))
}

func TestOnActivityTracked_IgnoresUnknownTypes(t *testing.T) {
	store := memory.NewStore()
	h := NewOnActivityTrackedHandler(store, viewcache.NewTTLCache(time.Minute), 0, discardLogger())

	require.NoError(t, h.Handle(shared.NewActivityTrackedEvent("u1", "teleported", "2026-10-18")))
	require.NoError(t, h.Handle(shared.NewDailyProgressResetEvent("u1", "2026-10-18")))

	_, err := store.GetDay(context.Background(), "u1", "2026-10-18")
	assert.True(t, shared.IsNotFound(err))
}

type failingStore struct {
	analytics.Store
}

func (failingStore) IncrementDay(context.Context, string, string, analytics.Delta) (*analytics.DailyAggregate, error) {
	return nil, shared.StoreError("IncrementDay", errors.New("connection refused"))
}

func TestOnActivityTracked_ReturnsStoreErrors(t *testing.T) {
	h := NewOnActivityTrackedHandler(failingStore{memory.NewStore()}, viewcache.NewTTLCache(time.Minute), 0, discardLogger())

	err := h.Handle(shared.NewActivityTrackedEvent("u1", string(analytics.ActivityLessonCompleted), "2026-10-18"))
	assert.True(t, shared.IsStore(err))
}
