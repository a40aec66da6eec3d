package command

import (
	"context"
	"log/slog"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// TrackActivityCommand reports one platform action.
type TrackActivityCommand struct {
	UserID        string
	Type          analytics.ActivityType
	Meta          analytics.ActivityMeta
	CorrelationID string
}

// Validate validates the command.
func (c TrackActivityCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrEmptyUserID
	}
	if !c.Type.Valid() {
		return shared.ErrUnknownActivity
	}
	_, err := analytics.DeltaFor(c.Type, c.Meta)
	return err
}

// TrackActivityHandler turns a tracked action into an ActivityTrackedEvent.
// The store write happens in the bus subscriber, so tracking never blocks
// or fails the caller: problems are logged and dropped.
type TrackActivityHandler struct {
	publisher shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger
}

// NewTrackActivityHandler creates a handler.
func NewTrackActivityHandler(publisher shared.EventPublisher, clock timeutil.Clock, logger *slog.Logger) *TrackActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackActivityHandler{
		publisher: publisher,
		clock:     clock,
		logger:    logger.With("component", "track_activity"),
	}
}

// Handle publishes the event. It reports whether the event was accepted.
func (h *TrackActivityHandler) Handle(_ context.Context, cmd TrackActivityCommand) bool {
	if err := cmd.Validate(); err != nil {
		h.logger.Warn("ignoring tracked activity",
			"user_id", cmd.UserID,
			"activity_type", string(cmd.Type),
			"error", err,
		)
		return false
	}

	event := shared.NewActivityTrackedEvent(cmd.UserID, string(cmd.Type), analytics.DateKey(h.clock.Now()))
	event.Correct = cmd.Meta.Correct
	event.SessionSeconds = cmd.Meta.SessionSeconds
	event.Area = cmd.Meta.Area
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}

	if err := h.publisher.Publish(event); err != nil {
		h.logger.Error("publish tracked activity failed",
			"user_id", cmd.UserID,
			"activity_type", string(cmd.Type),
			"error", err,
		)
		return false
	}
	return true
}
