package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"support_portal_backend/internal/ai"
	"support_portal_backend/internal/chat"
	"support_portal_backend/internal/chat/fallback"
	chatservice "support_portal_backend/internal/chat/service"
	apphttp "support_portal_backend/internal/http"
	"support_portal_backend/internal/http/router"
	"support_portal_backend/internal/scheduler"
	"support_portal_backend/internal/wukongim"
	"support_portal_backend/platform/config"
	"support_portal_backend/platform/db"
	"support_portal_backend/platform/logger"
	"support_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// External collaborators
	busClient := wukongim.NewClient(cfg, log)
	aiClient := ai.NewClient(cfg, log)

	// Queue-trigger enqueue client (optional: disabled without redis)
	var queueTrigger *scheduler.Client
	if cfg.RedisURL != "" {
		queueTrigger, err = scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize queue trigger client", "error", err)
			panic("failed to initialize queue trigger client: " + err.Error())
		}
		defer func() { _ = queueTrigger.Close() }()
	} else {
		log.Warn("REDIS_URL not set, queue triggers disabled")
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Assign through an interface variable so a nil *scheduler.Client never
	// ends up boxed in a non-nil interface.
	var trigger chatservice.QueueTrigger
	if queueTrigger != nil {
		trigger = queueTrigger
	}
	chatModule := chat.NewModule(pool, busClient, trigger, val, log)

	// The AI-fallback loop normally runs in the scheduler binary; running it
	// here as well is opt-in for single-process deployments.
	if os.Getenv("RUN_FALLBACK_IN_API") == "true" {
		fb := fallback.New(chatModule.Repository(), busClient, aiClient, log, cfg.FallbackInterval)
		fb.Start(ctx)
		defer fb.Stop()
	}

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  pool,
		Modules: []apphttp.Module{chatModule},
	}

	engine := router.New(app)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "error", err)
		panic("server stopped: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
