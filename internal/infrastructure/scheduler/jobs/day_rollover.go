package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// Flusher drops every cached analytics view.
type Flusher interface {
	Flush(ctx context.Context) error
}

// DayRolloverJob flushes the view cache at local midnight. Cached views are
// keyed by user and view kind only, so a view computed before midnight
// would otherwise be served as today's for up to one TTL.
type DayRolloverJob struct {
	cache  Flusher
	clock  timeutil.Clock
	logger *slog.Logger
}

// NewDayRolloverJob creates the job.
func NewDayRolloverJob(cache Flusher, clock timeutil.Clock, logger *slog.Logger) *DayRolloverJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DayRolloverJob{
		cache:  cache,
		clock:  clock,
		logger: logger.With("job", "day_rollover"),
	}
}

// Name implements scheduler.Job.
func (j *DayRolloverJob) Name() string { return "day_rollover" }

// Description implements scheduler.Job.
func (j *DayRolloverJob) Description() string {
	return "Drops cached analytics views when the local date changes"
}

// Run implements scheduler.Job.
func (j *DayRolloverJob) Run(ctx context.Context) error {
	if err := j.cache.Flush(ctx); err != nil {
		return fmt.Errorf("day rollover: flush view cache: %w", err)
	}
	j.logger.Info("view cache flushed for new day", "date", timeutil.FormatDateStr(j.clock.Now()))
	return nil
}
