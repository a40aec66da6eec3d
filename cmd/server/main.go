// Package main is the entry point of the study analytics HTTP service.
//
// The server owns the realtime analytics engine: it serves the composite
// dashboard and per-window views, records study time and activities, and
// runs the cache maintenance jobs in the background.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/study-analytics/config"
	"github.com/alem-hub/study-analytics/internal/bootstrap"
	httpserver "github.com/alem-hub/study-analytics/internal/interface/http"
	"github.com/alem-hub/study-analytics/internal/interface/http/handlers"
	"github.com/alem-hub/study-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.SetupLogger(cfg, os.Stdout)
	log.Info("starting study analytics server",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
		"driver", cfg.Database.Driver,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORE, CACHE, ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{AsyncTracking: true})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing runtime...")
		if err := rt.Close(); err != nil {
			log.Error("runtime close failed", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := bootstrap.NewScheduler(rt)
	if err != nil {
		return fmt.Errorf("failed to setup scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil {
			log.Error("scheduler stop failed", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server := httpserver.NewServer(serverConfig(cfg), httpserver.Dependencies{
		Analytics: rt.Engine,
		Health:    setupHealth(rt),
		Logger:    logger.FromSlog(log),
	})
	serverErr := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	log.Info("shutting down http server...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

func setupHealth(rt *bootstrap.Runtime) handlers.HealthChecker {
	health := handlers.NewCompositeHealthChecker(rt.Config.App.Version)
	health.SetTimeout(2 * time.Second)

	if rt.StorePing != nil {
		health.AddCheck("store", rt.StorePing)
	}
	if rt.Redis != nil {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(rt.Redis))
	}
	return health
}

func serverConfig(cfg *config.Config) httpserver.Config {
	sc := httpserver.DefaultConfig()
	sc.Host = cfg.HTTP.Host
	sc.Port = cfg.HTTP.Port
	sc.ReadTimeout = cfg.HTTP.ReadTimeout
	sc.WriteTimeout = cfg.HTTP.WriteTimeout
	sc.IdleTimeout = cfg.HTTP.IdleTimeout
	// Handlers must finish before the write deadline cuts the response.
	if cfg.HTTP.WriteTimeout > 2*time.Second {
		sc.RequestTimeout = cfg.HTTP.WriteTimeout - time.Second
	}
	return sc
}
