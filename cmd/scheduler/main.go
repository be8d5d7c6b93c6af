package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"support_portal_backend/internal/ai"
	"support_portal_backend/internal/chat"
	"support_portal_backend/internal/chat/fallback"
	chatservice "support_portal_backend/internal/chat/service"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	busClient := wukongim.NewClient(cfg, log)
	aiClient := ai.NewClient(cfg, log)

	var trigger chatservice.QueueTrigger
	var queueClient *scheduler.Client
	if cfg.RedisURL != "" {
		queueClient, err = scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize queue trigger client", "error", err)
			panic("failed to initialize queue trigger client: " + err.Error())
		}
		defer func() { _ = queueClient.Close() }()
		trigger = queueClient
	}

	val := validator.New()
	chatModule := chat.NewModule(pool, busClient, trigger, val, log)

	// AI-fallback reconciliation loop
	fb := fallback.New(chatModule.Repository(), busClient, aiClient, log, cfg.FallbackInterval)
	fb.Start(ctx)
	defer fb.Stop()

	// Queue-trigger worker; without redis the fallback loop still runs alone.
	if cfg.RedisURL != "" {
		worker, err := scheduler.NewWorker(cfg, chatModule.Service(), log)
		if err != nil {
			log.Error("failed to initialize scheduler worker", "error", err)
			panic("failed to initialize scheduler worker: " + err.Error())
		}
		worker.Run(ctx)
	} else {
		log.Warn("REDIS_URL not set, queue-trigger worker disabled")
		<-ctx.Done()
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
