// Package query contains the read paths of the analytics engine.
//
// Every read degrades instead of failing: a store error is logged and the
// caller gets the zero view for the affected window. Only an invalid query
// is returned as an error.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// streakLookback bounds the rows scanned by the streak walk.
const streakLookback = 366

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressQuery asks for one of the per-window views.
type ProgressQuery struct {
	UserID string
}

// Validate checks the query.
func (q ProgressQuery) Validate() error {
	if q.UserID == "" {
		return shared.ErrEmptyUserID
	}
	return nil
}

// Windows sets the trailing window lengths in days.
type Windows struct {
	WeekDays  int
	MonthDays int
}

// DefaultWindows returns the 7/30 day windows.
func DefaultWindows() Windows {
	return Windows{WeekDays: 7, MonthDays: 30}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProgressHandler serves the today, week and month views.
type ProgressHandler struct {
	store   analytics.Store
	cache   *GuardedCache
	clock   timeutil.Clock
	windows Windows
	logger  *slog.Logger
}

// NewProgressHandler creates a handler.
func NewProgressHandler(
	store analytics.Store,
	cache analytics.ViewCache,
	clock timeutil.Clock,
	windows Windows,
	logger *slog.Logger,
) *ProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if windows.WeekDays <= 0 {
		windows.WeekDays = DefaultWindows().WeekDays
	}
	if windows.MonthDays <= 0 {
		windows.MonthDays = DefaultWindows().MonthDays
	}
	return &ProgressHandler{
		store:   store,
		cache:   NewGuardedCache(cache),
		clock:   clock,
		windows: windows,
		logger:  logger.With("component", "progress_query"),
	}
}

// Today returns today's row projection; a missing row is the zero state.
func (h *ProgressHandler) Today(ctx context.Context, q ProgressQuery) (analytics.TodayProgress, error) {
	if err := q.Validate(); err != nil {
		return analytics.TodayProgress{}, err
	}

	key := analytics.CacheKey(q.UserID, analytics.ViewToday)
	var cached analytics.TodayProgress
	if h.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	gen := h.cache.Generation(q.UserID)
	v := h.computeToday(ctx, q.UserID, h.clock.Now())
	h.cache.PutIfCurrent(ctx, q.UserID, gen, key, v)
	return v, nil
}

// Week returns the trailing week view.
func (h *ProgressHandler) Week(ctx context.Context, q ProgressQuery) (analytics.WeeklyView, error) {
	if err := q.Validate(); err != nil {
		return analytics.WeeklyView{}, err
	}

	key := analytics.CacheKey(q.UserID, analytics.ViewWeek)
	var cached analytics.WeeklyView
	if h.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	gen := h.cache.Generation(q.UserID)
	v := h.computeWeek(ctx, q.UserID, h.clock.Now())
	h.cache.PutIfCurrent(ctx, q.UserID, gen, key, v)
	return v, nil
}

// Month returns the trailing month view.
func (h *ProgressHandler) Month(ctx context.Context, q ProgressQuery) (analytics.MonthlyView, error) {
	if err := q.Validate(); err != nil {
		return analytics.MonthlyView{}, err
	}

	key := analytics.CacheKey(q.UserID, analytics.ViewMonth)
	var cached analytics.MonthlyView
	if h.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	gen := h.cache.Generation(q.UserID)
	v := h.computeMonth(ctx, q.UserID, h.clock.Now())
	h.cache.PutIfCurrent(ctx, q.UserID, gen, key, v)
	return v, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UNCACHED COMPUTATIONS
// ══════════════════════════════════════════════════════════════════════════════

func (h *ProgressHandler) computeToday(ctx context.Context, userID string, now time.Time) analytics.TodayProgress {
	date := analytics.DateKey(now)
	row, err := h.store.GetDay(ctx, userID, date)
	switch {
	case err == nil:
		return analytics.NewTodayProgress(*row)
	case shared.IsNotFound(err):
	default:
		h.degraded("today", userID, err)
	}
	return analytics.NewTodayProgress(analytics.NewEmptyDay(userID, date))
}

func (h *ProgressHandler) computeWeek(ctx context.Context, userID string, now time.Time) analytics.WeeklyView {
	w := analytics.TrailingWindow(now, h.windows.WeekDays)
	rows, err := h.store.GetRange(ctx, userID, w.From(), w.To())
	if err != nil {
		h.degraded("week", userID, err)
		rows = nil
	}
	return analytics.BuildWeekly(rows, w)
}

func (h *ProgressHandler) computeMonth(ctx context.Context, userID string, now time.Time) analytics.MonthlyView {
	w := analytics.TrailingWindow(now, h.windows.MonthDays)
	rows, err := h.store.GetRange(ctx, userID, w.From(), w.To())
	if err != nil {
		h.degraded("month", userID, err)
		rows = nil
	}
	return analytics.BuildMonthly(rows, w, now)
}

func (h *ProgressHandler) computeStreak(ctx context.Context, userID string, now time.Time) int {
	rows, err := h.store.GetRecent(ctx, userID, streakLookback)
	if err != nil {
		h.degraded("streak", userID, err)
		return 0
	}
	return analytics.CalculateStreak(rows, now)
}

func (h *ProgressHandler) degraded(view, userID string, err error) {
	h.logger.Error("store read failed, serving zero view",
		"view", view,
		"user_id", userID,
		"error", err,
	)
}
