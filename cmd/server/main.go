// Package main is the entrypoint for the Pulse analytics API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kartikrao/pulse/internal/analytics"
	"github.com/kartikrao/pulse/internal/api"
	"github.com/kartikrao/pulse/internal/api/handler"
	mw "github.com/kartikrao/pulse/internal/api/middleware"
	"github.com/kartikrao/pulse/internal/api/response"
	"github.com/kartikrao/pulse/internal/apps"
	"github.com/kartikrao/pulse/internal/auth"
	"github.com/kartikrao/pulse/internal/cache"
	"github.com/kartikrao/pulse/internal/config"
	"github.com/kartikrao/pulse/internal/ingest"
	"github.com/kartikrao/pulse/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and services
	pgStore := store.NewPostgresStore(pool)

	ingestSvc := ingest.NewService(pgStore, redisCache)
	analyticsSvc := analytics.NewService(pgStore, redisCache, cfg.Cache.TTL)
	appsSvc := apps.NewService(pgStore)
	authSvc := auth.NewService(pgStore)
	google := auth.NewGoogleOAuth(cfg.Google)
	sessions := auth.NewSessionManager(cfg.Session.Secret, cfg.Session.TTL,
		cfg.Server.Env == "production")

	// 6. Build router with dependencies
	metrics := mw.NewMetrics(prometheus.DefaultRegisterer)

	deps := api.Dependencies{
		KeyAuth:     mw.NewKeyAuth(pgStore),
		SessionAuth: mw.NewSessionAuth(sessions, pgStore),
		CollectRate: mw.NewRateLimit(redisCache, cfg.RateLimit.CollectPerMin),
		QueryRate:   mw.NewRateLimit(redisCache, cfg.RateLimit.QueryPerMin),
		Metrics:     metrics,

		HealthHandler: healthHandler(pgStore, redisCache),

		CollectHandler: handler.NewCollectHandler(ingestSvc),

		EventSummaryHandler: handler.NewEventSummaryHandler(analyticsSvc),
		UserStatsHandler:    handler.NewUserStatsHandler(analyticsSvc),
		DashboardHandler:    handler.NewDashboardHandler(analyticsSvc),

		RegisterAppHandler:   handler.NewRegisterAppHandler(appsSvc),
		APIKeyHandler:        handler.NewAPIKeyHandler(appsSvc),
		RevokeKeyHandler:     handler.NewRevokeKeyHandler(appsSvc),
		RegenerateKeyHandler: handler.NewRegenerateKeyHandler(appsSvc),
		ListAppsHandler:      handler.NewListAppsHandler(appsSvc),

		GoogleLoginHandler:    handler.NewGoogleLoginHandler(google),
		GoogleCallbackHandler: handler.NewGoogleCallbackHandler(google, authSvc, sessions),
		MeHandler:             handler.NewMeHandler(),
		LogoutHandler:         handler.NewLogoutHandler(sessions),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
