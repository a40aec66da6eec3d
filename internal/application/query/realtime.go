package query

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
)

// DefaultFetchTimeout caps the parallel reads behind one realtime view.
const DefaultFetchTimeout = 10 * time.Second

// RealtimeQuery asks for the composite dashboard view.
type RealtimeQuery struct {
	UserID string

	// ForceRefresh skips the cache read; the result is still cached.
	ForceRefresh bool
}

// RealtimeHandler builds RealTimeAnalytics from the per-window views.
//
// Concurrent misses for one user share a single computation. Forced
// refreshes are grouped separately so they never join a computation that
// started before the caller's own write, and a computation that overlaps
// an invalidation is returned but not cached.
type RealtimeHandler struct {
	progress     *ProgressHandler
	group        singleflight.Group
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewRealtimeHandler creates a handler on top of progress.
func NewRealtimeHandler(progress *ProgressHandler, fetchTimeout time.Duration, logger *slog.Logger) *RealtimeHandler {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RealtimeHandler{
		progress:     progress,
		fetchTimeout: fetchTimeout,
		logger:       logger.With("component", "realtime_query"),
	}
}

// Handle returns the cached composite or computes a fresh one.
func (h *RealtimeHandler) Handle(ctx context.Context, q RealtimeQuery) (*analytics.RealTimeAnalytics, error) {
	if err := (ProgressQuery{UserID: q.UserID}).Validate(); err != nil {
		return nil, err
	}

	cache := h.progress.cache
	key := analytics.CacheKey(q.UserID, analytics.ViewRealtime)

	if !q.ForceRefresh {
		var cached analytics.RealTimeAnalytics
		if cache.Get(ctx, key, &cached) {
			cached.FromCache = true
			return &cached, nil
		}
	}

	// A write bumps the generation, so callers arriving after it start a
	// new flight instead of joining one that may have read older rows.
	gen := cache.Generation(q.UserID)
	flightKey := q.UserID + "|" + strconv.FormatUint(gen, 10)
	if q.ForceRefresh {
		flightKey += "|refresh"
	}

	v, err, shared := h.group.Do(flightKey, func() (any, error) {
		rt := h.compute(ctx, q.UserID)
		if !cache.PutIfCurrent(context.WithoutCancel(ctx), q.UserID, gen, key, rt) {
			h.logger.Debug("realtime view superseded by a write, not cached", "user_id", q.UserID)
		}
		return rt, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		h.logger.Debug("realtime computation shared", "user_id", q.UserID)
	}

	rt := v.(analytics.RealTimeAnalytics)
	return &rt, nil
}

// compute issues the four reads in parallel under the fetch timeout. Reads
// that fail or time out degrade to their zero view.
func (h *RealtimeHandler) compute(ctx context.Context, userID string) analytics.RealTimeAnalytics {
	start := time.Now()
	now := h.progress.clock.Now()

	// Detached from the caller: other callers may be sharing this flight.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.fetchTimeout)
	defer cancel()

	var (
		today  analytics.TodayProgress
		week   analytics.WeeklyView
		month  analytics.MonthlyView
		streak int
	)

	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		today = h.progress.computeToday(gctx, userID, now)
		return nil
	})
	g.Go(func() error {
		week = h.progress.computeWeek(gctx, userID, now)
		return nil
	})
	g.Go(func() error {
		month = h.progress.computeMonth(gctx, userID, now)
		return nil
	})
	g.Go(func() error {
		streak = h.progress.computeStreak(gctx, userID, now)
		return nil
	})
	_ = g.Wait()

	if fetchCtx.Err() != nil {
		h.logger.Warn("realtime fetch timed out, using partial views",
			"user_id", userID,
			"timeout", h.fetchTimeout.String(),
		)
	}

	rt := analytics.Compose(userID, today.DailyAggregate, week, month, streak)
	rt.GeneratedAt = now

	h.logger.Debug("realtime analytics computed",
		"user_id", userID,
		"streak", streak,
		"latency", time.Since(start).String(),
	)
	return rt
}
