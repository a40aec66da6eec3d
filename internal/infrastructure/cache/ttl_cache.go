// Package cache implements the in-process analytics view cache: a TTL map
// keyed by analytics.CacheKey.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// DefaultTTL is how long a computed view stays fresh.
const DefaultTTL = 5 * time.Minute

type entry struct {
	data      []byte
	expiresAt time.Time
}

// TTLCache is a mutex-guarded map of encoded views.
//
// Values are stored as JSON so a hit never shares memory with the value
// that was put. Expired entries are skipped on read and removed by Sweep.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   timeutil.Clock
	logger  *slog.Logger
}

var _ analytics.ViewCache = (*TTLCache)(nil)

// Option configures a TTLCache.
type Option func(*TTLCache)

// WithClock replaces the wall clock.
func WithClock(c timeutil.Clock) Option {
	return func(tc *TTLCache) { tc.clock = c }
}

// WithLogger sets the logger used for encode failures.
func WithLogger(l *slog.Logger) Option {
	return func(tc *TTLCache) { tc.logger = l }
}

// NewTTLCache creates a cache. A non-positive ttl falls back to DefaultTTL.
func NewTTLCache(ttl time.Duration, opts ...Option) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TTLCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   timeutil.NewSystemClock(time.UTC),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *TTLCache) TTL() time.Duration {
	return c.ttl
}

// Get decodes a live entry into dest.
func (c *TTLCache) Get(_ context.Context, key string, dest any) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	now := c.clock.Now()
	if ok && !now.Before(e.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		c.logger.Warn("cache entry decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// Put stores value until now+TTL.
func (c *TTLCache) Put(_ context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache entry encode failed", "key", key, "error", err)
		return
	}

	c.mu.Lock()
	c.entries[key] = entry{data: data, expiresAt: c.clock.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// InvalidateUser removes every key of userID.
func (c *TTLCache) InvalidateUser(_ context.Context, userID string) {
	keys := analytics.UserKeys(userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// Sweep removes expired entries and returns how many were dropped.
func (c *TTLCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Flush drops every entry.
func (c *TTLCache) Flush(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
