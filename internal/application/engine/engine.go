// Package engine is the public face of the analytics core. It wires the
// read paths, the write paths and the activity subscriber behind one type
// that the HTTP server and the admin CLI share.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/study-analytics/internal/application/command"
	"github.com/alem-hub/study-analytics/internal/application/eventhandler"
	"github.com/alem-hub/study-analytics/internal/application/query"
	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// Config tunes the engine.
type Config struct {
	Windows      query.Windows
	FetchTimeout time.Duration
	WriteTimeout time.Duration
	Reset        command.ResetConfig
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Windows:      query.DefaultWindows(),
		FetchTimeout: query.DefaultFetchTimeout,
		WriteTimeout: eventhandler.DefaultWriteTimeout,
		Reset:        command.DefaultResetConfig(),
	}
}

// Dependencies are the collaborators the engine is built from.
type Dependencies struct {
	Store analytics.Store
	Cache analytics.ViewCache

	// Bus carries tracked activities to the store writer. When nil,
	// tracked activities are applied synchronously.
	Bus shared.EventBus

	Clock  timeutil.Clock
	Logger *slog.Logger
}

// Engine serves realtime analytics and records study activity.
type Engine struct {
	store analytics.Store
	cache analytics.ViewCache

	progress *query.ProgressHandler
	realtime *query.RealtimeHandler
	insights *query.InsightsHandler

	reset   *command.ResetDailyProgressHandler
	addTime *command.AddStudyTimeHandler
	track   *command.TrackActivityHandler

	logger *slog.Logger
}

// New builds an engine and subscribes the activity writer on deps.Bus.
func New(deps Dependencies, cfg Config) (*Engine, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.NewSystemClock(time.UTC)
	}
	logger := deps.Logger

	// Every writer and reader shares one guard so invalidations fence
	// in-flight reads.
	deps.Cache = query.NewGuardedCache(deps.Cache)

	writer := eventhandler.NewOnActivityTrackedHandler(deps.Store, deps.Cache, cfg.WriteTimeout, logger)

	var publisher shared.EventPublisher
	if deps.Bus != nil {
		if err := writer.Register(deps.Bus); err != nil {
			return nil, err
		}
		publisher = deps.Bus
	} else {
		publisher = directPublisher{writer: writer, logger: logger}
	}

	progress := query.NewProgressHandler(deps.Store, deps.Cache, deps.Clock, cfg.Windows, logger)
	realtime := query.NewRealtimeHandler(progress, cfg.FetchTimeout, logger)

	return &Engine{
		store:    deps.Store,
		cache:    deps.Cache,
		progress: progress,
		realtime: realtime,
		insights: query.NewInsightsHandler(realtime, deps.Cache),
		reset:    command.NewResetDailyProgressHandler(deps.Store, deps.Cache, publisher, deps.Clock, cfg.Reset, logger),
		addTime:  command.NewAddStudyTimeHandler(deps.Store, deps.Cache, publisher, deps.Clock, logger),
		track:    command.NewTrackActivityHandler(publisher, deps.Clock, logger),
		logger:   logger.With("component", "engine"),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

// GetRealTimeAnalytics returns the dashboard composite, from cache when fresh.
func (e *Engine) GetRealTimeAnalytics(ctx context.Context, userID string) (*analytics.RealTimeAnalytics, error) {
	return e.realtime.Handle(ctx, query.RealtimeQuery{UserID: userID})
}

// ForceRefreshAnalytics recomputes the composite and replaces the cached copy.
func (e *Engine) ForceRefreshAnalytics(ctx context.Context, userID string) (*analytics.RealTimeAnalytics, error) {
	e.cache.InvalidateUser(ctx, userID)
	return e.realtime.Handle(ctx, query.RealtimeQuery{UserID: userID, ForceRefresh: true})
}

// GetStudyInsights returns the narrative summary.
func (e *Engine) GetStudyInsights(ctx context.Context, userID string) (*analytics.StudyInsights, error) {
	return e.insights.Handle(ctx, query.ProgressQuery{UserID: userID})
}

// GetTodayProgress returns today's row; a missing row is the zero state.
func (e *Engine) GetTodayProgress(ctx context.Context, userID string) (analytics.TodayProgress, error) {
	return e.progress.Today(ctx, query.ProgressQuery{UserID: userID})
}

// GetWeeklyProgress returns the trailing week view.
func (e *Engine) GetWeeklyProgress(ctx context.Context, userID string) (analytics.WeeklyView, error) {
	return e.progress.Week(ctx, query.ProgressQuery{UserID: userID})
}

// GetMonthlyProgress returns the trailing month view.
func (e *Engine) GetMonthlyProgress(ctx context.Context, userID string) (analytics.MonthlyView, error) {
	return e.progress.Month(ctx, query.ProgressQuery{UserID: userID})
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITES
// ══════════════════════════════════════════════════════════════════════════════

// ResetDailyTimeSpent zeroes today's row for userID.
func (e *Engine) ResetDailyTimeSpent(ctx context.Context, userID string) error {
	return e.reset.Handle(ctx, command.ResetDailyProgressCommand{UserID: userID})
}

// ResetAndGetFreshAnalytics resets today's row and returns a recomputed
// composite that reflects it.
func (e *Engine) ResetAndGetFreshAnalytics(ctx context.Context, userID string) (*analytics.RealTimeAnalytics, error) {
	if err := e.ResetDailyTimeSpent(ctx, userID); err != nil {
		return nil, err
	}
	return e.ForceRefreshAnalytics(ctx, userID)
}

// AddStudyTime adds seconds of study time to today's row.
func (e *Engine) AddStudyTime(ctx context.Context, userID string, seconds int) (*analytics.DailyAggregate, error) {
	return e.addTime.Handle(ctx, command.AddStudyTimeCommand{UserID: userID, Seconds: seconds})
}

// TrackPlatformActivity records a platform action. It never fails the
// caller and reports whether the activity was accepted.
func (e *Engine) TrackPlatformActivity(ctx context.Context, userID string, activity analytics.ActivityType, meta analytics.ActivityMeta) bool {
	return e.track.Handle(ctx, command.TrackActivityCommand{
		UserID:        userID,
		Type:          activity,
		Meta:          meta,
		CorrelationID: CorrelationIDFromContext(ctx),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// directPublisher delivers events to the activity writer inline.
type directPublisher struct {
	writer *eventhandler.OnActivityTrackedHandler
	logger *slog.Logger
}

func (p directPublisher) Publish(event shared.Event) error {
	if event.EventType() != p.writer.EventType() {
		return nil
	}
	if err := p.writer.Handle(event); err != nil {
		p.logger.Error("apply tracked activity failed",
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
	return nil
}

type correlationKey struct{}

// WithCorrelationID attaches a request id that tracked events will carry.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the id set by WithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
