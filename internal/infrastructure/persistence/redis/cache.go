// Package redis implements the shared analytics view cache on Redis.
//
// Views are stored as JSON under analytics.CacheKey keys with SET EX, and a
// user's views are invalidated by SCAN over the user prefix followed by DEL.
// Every call runs behind a circuit breaker; any Redis failure is logged and
// reported to the caller as a miss.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// URL takes precedence over the discrete fields when set.
	URL string

	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolTimeout:  2 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Options builds go-redis client options.
func (c Config) Options() (*redis.Options, error) {
	var opts *redis.Options
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     c.Addr(),
			Password: c.Password,
			DB:       c.DB,
		}
	}

	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		opts.MinIdleConns = c.MinIdleConns
	}
	if c.MaxRetries != 0 {
		opts.MaxRetries = c.MaxRetries
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	if c.PoolTimeout > 0 {
		opts.PoolTimeout = c.PoolTimeout
	}
	return opts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheConnection is returned when Redis cannot be reached at startup.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when a view cannot be encoded or decoded.
	ErrCacheSerialization = errors.New("cache: serialization failed")
)

// isBreakerFailure excludes outcomes that say nothing about Redis health.
func isBreakerFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, redis.Nil) &&
		!errors.Is(err, ErrCacheSerialization) &&
		!errors.Is(err, context.Canceled)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// NewClient creates a client and verifies it with PING.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ViewCache is the Redis implementation of analytics.ViewCache.
type ViewCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ analytics.ViewCache = (*ViewCache)(nil)

// NewViewCache wraps client. ttl must be positive.
func NewViewCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *ViewCache {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "redis_view_cache")

	return &ViewCache{
		client: client,
		ttl:    ttl,
		breaker: circuitbreaker.CacheBreaker(isBreakerFailure, func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
		logger: logger,
	}
}

// Get decodes the view under key into dest. Misses, decode failures, Redis
// errors and an open breaker all report false.
func (c *ViewCache) Get(ctx context.Context, key string, dest any) bool {
	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		b, err := c.client.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed, treating as miss", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache entry decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// Put stores value with SET EX.
func (c *ViewCache) Put(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache entry encode failed", "key", key, "error", fmt.Errorf("%w: %v", ErrCacheSerialization, err))
		return
	}

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil {
		c.logger.Warn("cache put failed", "key", key, "error", err)
	}
}

// InvalidateUser deletes the user's view keys by name. A SCAN pattern
// built from the id would treat glob characters in it as wildcards.
func (c *ViewCache) InvalidateUser(ctx context.Context, userID string) {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.client.Del(ctx, analytics.UserKeys(userID)...).Err()
	})
	if err != nil {
		c.logger.Warn("cache invalidation failed", "user_id", userID, "error", err)
	}
}

// Flush deletes every analytics key.
func (c *ViewCache) Flush(ctx context.Context) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.deleteByPattern(ctx, analytics.CacheKeyPrefix+"*")
	})
}

// Ping checks if Redis is reachable.
func (c *ViewCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// BreakerState exposes the breaker state for readiness reporting.
func (c *ViewCache) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// deleteByPattern deletes keys matching pattern in batches of 100.
func (c *ViewCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0, 100)

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}
