// Package eventhandler contains the bus subscribers that apply analytics
// events to the store.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
)

// DefaultWriteTimeout bounds one store write triggered by an event.
const DefaultWriteTimeout = 5 * time.Second

// OnActivityTrackedHandler applies a tracked platform activity to the
// user's daily row and drops their cached views.
type OnActivityTrackedHandler struct {
	store   analytics.Store
	cache   analytics.ViewCache
	timeout time.Duration
	logger  *slog.Logger
}

// NewOnActivityTrackedHandler creates the subscriber.
func NewOnActivityTrackedHandler(store analytics.Store, cache analytics.ViewCache, timeout time.Duration, logger *slog.Logger) *OnActivityTrackedHandler {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OnActivityTrackedHandler{
		store:   store,
		cache:   cache,
		timeout: timeout,
		logger:  logger.With("handler", "on_activity_tracked"),
	}
}

// Handle implements shared.EventHandler.
func (h *OnActivityTrackedHandler) Handle(event shared.Event) error {
	tracked, ok := event.(shared.ActivityTrackedEvent)
	if !ok {
		h.logger.Warn("received unexpected event", "event_type", event.EventType())
		return nil
	}

	delta, err := analytics.DeltaFor(analytics.ActivityType(tracked.ActivityType), analytics.ActivityMeta{
		Correct:        tracked.Correct,
		SessionSeconds: tracked.SessionSeconds,
		Area:           tracked.Area,
	})
	if err != nil {
		h.logger.Warn("ignoring unknown activity",
			"user_id", tracked.UserID,
			"activity_type", tracked.ActivityType,
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	row, err := h.store.IncrementDay(ctx, tracked.UserID, tracked.Date, delta)
	if err != nil {
		return err
	}
	h.cache.InvalidateUser(ctx, tracked.UserID)

	h.logger.Debug("activity applied",
		"user_id", tracked.UserID,
		"activity_type", tracked.ActivityType,
		"total_activities", row.TotalActivities,
		"correlation_id", tracked.CorrelationID,
	)
	return nil
}

// EventType returns the event this handler subscribes to.
func (h *OnActivityTrackedHandler) EventType() shared.EventType {
	return shared.EventActivityTracked
}

// Register subscribes the handler on bus.
func (h *OnActivityTrackedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(h.EventType(), h.Handle)
}
