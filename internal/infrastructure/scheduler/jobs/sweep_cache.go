// Package jobs contains the scheduled maintenance jobs of the analytics
// service.
package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Sweeper removes expired entries and reports how many it dropped.
type Sweeper interface {
	Sweep() int
}

// SweepCacheJob bounds the growth of the in-process view cache between
// reads of cold users.
type SweepCacheJob struct {
	cache  Sweeper
	logger *slog.Logger

	swept atomic.Int64
}

// NewSweepCacheJob creates the job.
func NewSweepCacheJob(cache Sweeper, logger *slog.Logger) *SweepCacheJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepCacheJob{
		cache:  cache,
		logger: logger.With("job", "sweep_view_cache"),
	}
}

// Name implements scheduler.Job.
func (j *SweepCacheJob) Name() string { return "sweep_view_cache" }

// Description implements scheduler.Job.
func (j *SweepCacheJob) Description() string {
	return "Removes expired analytics views from the in-process cache"
}

// Run implements scheduler.Job.
func (j *SweepCacheJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n := j.cache.Sweep()
	total := j.swept.Add(int64(n))
	if n > 0 {
		j.logger.Debug("expired views swept", "removed", n, "removed_total", total)
	}
	return nil
}

// Swept returns the number of entries removed since the job was created.
func (j *SweepCacheJob) Swept() int64 {
	return j.swept.Load()
}
