package query

import (
	"context"
	"sync"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
)

// GuardedCache wraps a ViewCache with a generation counter per user.
// InvalidateUser bumps the generation, and PutIfCurrent drops a view that
// was computed under an older one, so a read that raced a write cannot
// put pre-write data back into the cache.
//
// Generations are process-local. With a shared Redis cache, another
// instance's in-flight read can still land after this instance's write.
type GuardedCache struct {
	analytics.ViewCache

	mu    sync.Mutex
	users map[string]*generation
}

type generation struct {
	mu sync.Mutex
	n  uint64
}

// NewGuardedCache wraps inner. An already guarded cache is returned as is.
func NewGuardedCache(inner analytics.ViewCache) *GuardedCache {
	if g, ok := inner.(*GuardedCache); ok {
		return g
	}
	return &GuardedCache{
		ViewCache: inner,
		users:     make(map[string]*generation),
	}
}

func (c *GuardedCache) user(userID string) *generation {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.users[userID]
	if !ok {
		g = &generation{}
		c.users[userID] = g
	}
	return g
}

// Generation returns the current generation of userID.
func (c *GuardedCache) Generation(userID string) uint64 {
	g := c.user(userID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// InvalidateUser bumps the generation and drops the user's entries.
func (c *GuardedCache) InvalidateUser(ctx context.Context, userID string) {
	g := c.user(userID)
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	c.ViewCache.InvalidateUser(ctx, userID)
}

// PutIfCurrent stores value only while userID is still at gen.
func (c *GuardedCache) PutIfCurrent(ctx context.Context, userID string, gen uint64, key string, value any) bool {
	g := c.user(userID)
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.n != gen {
		return false
	}
	c.ViewCache.Put(ctx, key, value)
	return true
}
