// Package bootstrap assembles the analytics runtime from configuration.
// Both the HTTP server and the admin CLI start from Open.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alem-hub/study-analytics/config"
	"github.com/alem-hub/study-analytics/internal/application/command"
	"github.com/alem-hub/study-analytics/internal/application/engine"
	"github.com/alem-hub/study-analytics/internal/application/query"
	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/infrastructure/cache"
	"github.com/alem-hub/study-analytics/internal/infrastructure/messaging"
	"github.com/alem-hub/study-analytics/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/study-analytics/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/study-analytics/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/study-analytics/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/study-analytics/internal/infrastructure/scheduler"
	"github.com/alem-hub/study-analytics/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/study-analytics/pkg/logger"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

// Options selects the optional parts of the runtime.
type Options struct {
	// AsyncTracking runs tracked activities on the bus worker pool.
	// The CLI leaves it off so a command's writes land before it exits.
	AsyncTracking bool

	// Store replaces the configured driver when set.
	Store analytics.Store
}

// Runtime holds the assembled components.
type Runtime struct {
	Config *config.Config
	Clock  timeutil.Clock
	Logger *slog.Logger

	Store analytics.Store
	Cache analytics.ViewCache

	// Local is the in-process cache; nil when views live in Redis.
	Local *cache.TTLCache
	// Redis is the shared cache; nil when disabled or unreachable.
	Redis *redis.ViewCache

	Bus    *messaging.InMemoryEventBus
	Engine *engine.Engine

	// StorePing checks the store; nil for the memory driver.
	StorePing func(ctx context.Context) error

	// Migrator manages the postgres schema; nil for other drivers, which
	// create their schema on open.
	Migrator *postgres.Migrator

	closers []func() error
}

// SetupLogger builds the process logger and installs it as the slog
// default. JSON in production and text elsewhere unless LOG_FORMAT says
// otherwise.
func SetupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	format := cfg.Observability.LogFormat
	if format == "" {
		format = "json"
		if !cfg.IsProduction() {
			format = "text"
		}
	}

	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}

	log := logger.New(logger.Options{
		Output: w,
		Level:  level,
		Format: format,
	}).Slog()
	slog.SetDefault(log)
	return log
}

// Open connects the store and cache and builds the engine.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*Runtime, error) {
	if log == nil {
		log = slog.Default()
	}

	rt := &Runtime{
		Config: cfg,
		Clock:  timeutil.NewSystemClock(cfg.App.Location),
		Logger: log,
	}

	resetCfg := command.DefaultResetConfig()
	resetCfg.SettleDelay = cfg.Analytics.SettleDelay

	// ─────────────────────────────────────────────────────────────────────────
	// STORE
	// ─────────────────────────────────────────────────────────────────────────
	switch {
	case opts.Store != nil:
		rt.Store = opts.Store

	case cfg.Database.Driver == config.DriverPostgres:
		conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, func() error { conn.Close(); return nil })

		rt.Migrator = postgres.NewMigrator(conn)
		if cfg.Database.AutoMigrate {
			n, err := rt.Migrator.Migrate(ctx)
			if err != nil {
				_ = rt.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			log.Info("migrations applied", "count", n)
		}

		rt.Store = postgres.NewDailyAnalyticsRepository(conn, cfg.Database.ConsistentReads,
			postgres.WithQueryTimeout(cfg.Database.QueryTimeout))
		rt.StorePing = conn.Ping
		resetCfg.RetryIf = postgres.IsTransient

	case cfg.Database.Driver == config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Database.SQLitePath, sqlite.WithQueryTimeout(cfg.Database.QueryTimeout))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)
		rt.Store = store
		rt.StorePing = store.Ping

	case cfg.Database.Driver == config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		rt.Store = memory.NewStore()

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	log.Info("store ready", "driver", cfg.Database.Driver)

	// ─────────────────────────────────────────────────────────────────────────
	// VIEW CACHE
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Redis.Disabled {
		client, err := redis.NewClient(ctx, redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("redis unavailable, falling back to in-process cache", "error", err)
		} else {
			rt.closers = append(rt.closers, client.Close)
			rt.Redis = redis.NewViewCache(client, cfg.Analytics.CacheTTL, log)
			rt.Cache = rt.Redis
		}
	}
	if rt.Cache == nil {
		rt.Local = cache.NewTTLCache(cfg.Analytics.CacheTTL,
			cache.WithClock(rt.Clock),
			cache.WithLogger(log),
		)
		rt.Cache = rt.Local
	}

	// ─────────────────────────────────────────────────────────────────────────
	// EVENT BUS + ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	rt.Bus = messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      opts.AsyncTracking,
		WorkerPoolSize: cfg.Analytics.TrackingWorkers,
		Logger:         log,
		EnableMetrics:  true,
	})

	engineCfg := engine.DefaultConfig()
	engineCfg.Windows = query.Windows{
		WeekDays:  cfg.Analytics.WeekDays,
		MonthDays: cfg.Analytics.MonthDays,
	}
	engineCfg.FetchTimeout = cfg.Analytics.FetchTimeout
	engineCfg.Reset = resetCfg

	eng, err := engine.New(engine.Dependencies{
		Store:  rt.Store,
		Cache:  rt.Cache,
		Bus:    rt.Bus,
		Clock:  rt.Clock,
		Logger: log,
	}, engineCfg)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	rt.Engine = eng

	return rt, nil
}

// Close drains the bus and releases connections in reverse order.
// Queued tracking writes finish before the store is closed.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Bus != nil {
		rt.Bus.Drain()
		if err := rt.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func postgresConfig(c config.DatabaseConfig) postgres.Config {
	pc := postgres.DefaultConfig(c.URL)
	if c.MaxConns > 0 {
		pc.MaxConns = int32(c.MaxConns)
	}
	if c.MinConns > 0 {
		pc.MinConns = int32(c.MinConns)
	}
	if c.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = c.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = c.ConnMaxIdleTime
	}
	return pc
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = c.URL
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	if c.PoolSize > 0 {
		rc.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		rc.MinIdleConns = c.MinIdleConns
	}
	rc.DialTimeout = nonZero(c.DialTimeout, rc.DialTimeout)
	rc.ReadTimeout = nonZero(c.ReadTimeout, rc.ReadTimeout)
	rc.WriteTimeout = nonZero(c.WriteTimeout, rc.WriteTimeout)
	return rc
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// NewScheduler registers the cache maintenance jobs. The sweep runs only
// for the in-process cache; Redis expires keys on its own.
func NewScheduler(rt *Runtime) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:       rt.Logger,
		Clock:        rt.Clock,
		TickInterval: time.Second,
	})

	if rt.Local != nil {
		sweep := jobs.NewSweepCacheJob(rt.Local, rt.Logger)
		if err := sched.Register(sweep, scheduler.NewIntervalSchedule(rt.Config.Analytics.SweepInterval)); err != nil {
			return nil, err
		}
	}

	var flusher jobs.Flusher = rt.Local
	if rt.Redis != nil {
		flusher = rt.Redis
	}
	rollover := jobs.NewDayRolloverJob(flusher, rt.Clock, rt.Logger)
	if err := sched.Register(rollover, scheduler.Midnight(rt.Config.App.Location)); err != nil {
		return nil, err
	}

	sched.OnJobError(func(name string, err error) {
		rt.Logger.Error("scheduled job failed", "job", name, "error", err)
	})
	return sched, nil
}
