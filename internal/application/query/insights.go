package query

import (
	"context"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
)

// InsightsHandler derives StudyInsights from the realtime composite.
type InsightsHandler struct {
	realtime *RealtimeHandler
	cache    *GuardedCache
}

// NewInsightsHandler creates a handler.
func NewInsightsHandler(realtime *RealtimeHandler, cache analytics.ViewCache) *InsightsHandler {
	return &InsightsHandler{realtime: realtime, cache: NewGuardedCache(cache)}
}

// Handle returns the cached insights or builds them from the realtime view.
func (h *InsightsHandler) Handle(ctx context.Context, q ProgressQuery) (*analytics.StudyInsights, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := analytics.CacheKey(q.UserID, analytics.ViewInsights)
	var cached analytics.StudyInsights
	if h.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	gen := h.cache.Generation(q.UserID)
	rt, err := h.realtime.Handle(ctx, RealtimeQuery{UserID: q.UserID})
	if err != nil {
		return nil, err
	}

	insights := analytics.BuildInsights(*rt)
	h.cache.PutIfCurrent(ctx, q.UserID, gen, key, insights)
	return &insights, nil
}
