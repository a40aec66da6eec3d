// Package command contains the write paths of the analytics engine.
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
	"github.com/alem-hub/study-analytics/pkg/retry"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// DefaultSettleDelay is the wait after a reset on stores without
// read-after-write consistency.
const DefaultSettleDelay = 750 * time.Millisecond

// ══════════════════════════════════════════════════════════════════════════════
// RESET DAILY PROGRESS COMMAND
// Zeroes today's row when the user logs in, then gives lagging replicas
// time to catch up before anyone reads it back.
// ══════════════════════════════════════════════════════════════════════════════

// ResetDailyProgressCommand resets today's counters for one user.
type ResetDailyProgressCommand struct {
	UserID string
}

// Validate validates the command.
func (c ResetDailyProgressCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrEmptyUserID
	}
	return nil
}

// ResetConfig tunes the reset protocol.
type ResetConfig struct {
	// SettleDelay is skipped when the store reports consistent reads.
	SettleDelay time.Duration

	// RetryIf selects upsert failures worth retrying. Defaults to every
	// store error.
	RetryIf func(error) bool
}

// DefaultResetConfig returns the default configuration.
func DefaultResetConfig() ResetConfig {
	return ResetConfig{
		SettleDelay: DefaultSettleDelay,
		RetryIf:     shared.IsStore,
	}
}

// ResetDailyProgressHandler runs the reset protocol:
// delete the row, upsert a zeroed row, invalidate the cache, settle.
type ResetDailyProgressHandler struct {
	store     analytics.Store
	cache     analytics.ViewCache
	publisher shared.EventPublisher
	clock     timeutil.Clock
	retrier   *retry.Retrier
	settle    time.Duration
	logger    *slog.Logger
}

// NewResetDailyProgressHandler creates a handler. publisher may be nil.
func NewResetDailyProgressHandler(
	store analytics.Store,
	cache analytics.ViewCache,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	config ResetConfig,
	logger *slog.Logger,
) *ResetDailyProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SettleDelay < 0 {
		config.SettleDelay = 0
	}
	if config.RetryIf == nil {
		config.RetryIf = shared.IsStore
	}
	logger = logger.With("component", "reset_daily_progress")

	return &ResetDailyProgressHandler{
		store:     store,
		cache:     cache,
		publisher: publisher,
		clock:     clock,
		retrier: retry.DatabaseRetrier(
			retry.WithRetryIf(config.RetryIf),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				logger.Warn("retrying zero-row upsert",
					"attempt", attempt,
					"delay", delay.String(),
					"error", err,
				)
			}),
		),
		settle: config.SettleDelay,
		logger: logger,
	}
}

// Handle executes the reset. Only the upsert can fail the command; a failed
// delete is logged and the upsert overwrites the row anyway.
func (h *ResetDailyProgressHandler) Handle(ctx context.Context, cmd ResetDailyProgressCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	date := analytics.DateKey(h.clock.Now())

	if err := h.store.DeleteDay(ctx, cmd.UserID, date); err != nil {
		h.logger.Warn("delete before reset failed, continuing",
			"user_id", cmd.UserID,
			"date", date,
			"error", err,
		)
	}

	zero := analytics.NewEmptyDay(cmd.UserID, date)
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.store.UpsertDay(ctx, zero)
	})
	if err != nil {
		h.logger.Error("reset upsert failed",
			"user_id", cmd.UserID,
			"date", date,
			"error", err,
		)
		return shared.WrapError("analytics", "Reset", shared.ErrStore, "daily reset failed", err)
	}

	h.cache.InvalidateUser(ctx, cmd.UserID)

	if h.publisher != nil {
		if err := h.publisher.Publish(shared.NewDailyProgressResetEvent(cmd.UserID, date)); err != nil {
			h.logger.Warn("publish reset event failed", "user_id", cmd.UserID, "error", err)
		}
	}

	if h.store.ConsistentReads() || h.settle == 0 {
		return nil
	}
	return h.wait(ctx)
}

func (h *ResetDailyProgressHandler) wait(ctx context.Context) error {
	timer := time.NewTimer(h.settle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
