package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*TTLCache, *stepClock) {
	clock := &stepClock{t: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
	return NewTTLCache(ttl, WithClock(clock)), clock
}

func TestTTLCache_GetPut(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	ctx := context.Background()
	key := analytics.CacheKey("u1", analytics.ViewToday)

	var got analytics.TodayProgress
	assert.False(t, c.Get(ctx, key, &got))

	today := analytics.NewTodayProgress(analytics.NewEmptyDay("u1", "2026-10-18"))
	today.TotalActivities = 3
	c.Put(ctx, key, today)

	require.True(t, c.Get(ctx, key, &got))
	assert.Equal(t, 3, got.TotalActivities)
	assert.Equal(t, "2026-10-18", got.Date)
}

func TestTTLCache_ExpiredEntryIsNeverReturned(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	ctx := context.Background()
	c.Put(ctx, "analytics:u1:today", 1)

	clock.Advance(59 * time.Second)
	var v int
	assert.True(t, c.Get(ctx, "analytics:u1:today", &v))

	clock.Advance(time.Second)
	assert.False(t, c.Get(ctx, "analytics:u1:today", &v), "now == expiry is already expired")
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_PutRefreshesExpiry(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	ctx := context.Background()
	c.Put(ctx, "k", "a")
	clock.Advance(50 * time.Second)
	c.Put(ctx, "k", "b")
	clock.Advance(50 * time.Second)

	var v string
	require.True(t, c.Get(ctx, "k", &v))
	assert.Equal(t, "b", v)
}

func TestTTLCache_HitDoesNotShareMemory(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	ctx := context.Background()

	areas := []string{"algebra"}
	c.Put(ctx, "k", areas)
	areas[0] = "mutated"

	var got []string
	require.True(t, c.Get(ctx, "k", &got))
	assert.Equal(t, []string{"algebra"}, got)
}

func TestTTLCache_InvalidateUser(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	ctx := context.Background()
	for _, kind := range []analytics.ViewKind{analytics.ViewRealtime, analytics.ViewToday, analytics.ViewWeek} {
		c.Put(ctx, analytics.CacheKey("u1", kind), 1)
		c.Put(ctx, analytics.CacheKey("u10", kind), 1)
		c.Put(ctx, analytics.CacheKey("u1:x", kind), 1)
	}

	c.InvalidateUser(ctx, "u1")

	var v int
	assert.False(t, c.Get(ctx, analytics.CacheKey("u1", analytics.ViewRealtime), &v))
	assert.True(t, c.Get(ctx, analytics.CacheKey("u10", analytics.ViewRealtime), &v))
	assert.True(t, c.Get(ctx, analytics.CacheKey("u1:x", analytics.ViewRealtime), &v), "ids sharing a prefix keep their entries")
	assert.Equal(t, 6, c.Len())
}

func TestTTLCache_Sweep(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	ctx := context.Background()
	c.Put(ctx, "old", 1)
	clock.Advance(30 * time.Second)
	c.Put(ctx, "new", 1)
	clock.Advance(40 * time.Second)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	assert.NoError(t, c.Flush(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewTTLCache(0).TTL())
}

func TestTTLCache_UnencodableValueIsSkipped(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put(context.Background(), "k", make(chan int))
	assert.Equal(t, 0, c.Len())
}
