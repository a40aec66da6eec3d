package command

import (
	"context"
	"log/slog"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// AddStudyTimeCommand adds study time to today's row.
type AddStudyTimeCommand struct {
	UserID  string
	Seconds int
}

// Validate validates the command.
func (c AddStudyTimeCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrEmptyUserID
	}
	if c.Seconds <= 0 {
		return shared.ErrNonPositiveDuration
	}
	return nil
}

// AddStudyTimeHandler increments TotalTimeSpent and TotalActivities in one
// atomic store call.
type AddStudyTimeHandler struct {
	store     analytics.Store
	cache     analytics.ViewCache
	publisher shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger
}

// NewAddStudyTimeHandler creates a handler. publisher may be nil.
func NewAddStudyTimeHandler(
	store analytics.Store,
	cache analytics.ViewCache,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	logger *slog.Logger,
) *AddStudyTimeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddStudyTimeHandler{
		store:     store,
		cache:     cache,
		publisher: publisher,
		clock:     clock,
		logger:    logger.With("component", "add_study_time"),
	}
}

// Handle executes the command and returns the row as written.
func (h *AddStudyTimeHandler) Handle(ctx context.Context, cmd AddStudyTimeCommand) (*analytics.DailyAggregate, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	date := analytics.DateKey(h.clock.Now())
	row, err := h.store.IncrementDay(ctx, cmd.UserID, date, analytics.Delta{
		Activities: 1,
		TimeSpent:  cmd.Seconds,
	})
	if err != nil {
		return nil, err
	}

	h.cache.InvalidateUser(ctx, cmd.UserID)

	if h.publisher != nil {
		if err := h.publisher.Publish(shared.NewStudyTimeRecordedEvent(cmd.UserID, cmd.Seconds, date)); err != nil {
			h.logger.Warn("publish study time event failed", "user_id", cmd.UserID, "error", err)
		}
	}

	h.logger.Debug("study time added",
		"user_id", cmd.UserID,
		"seconds", cmd.Seconds,
		"total_time_spent", row.TotalTimeSpent,
	)
	return row, nil
}
