package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/portcullis-acs/portcullis/internal/access"
	"github.com/portcullis-acs/portcullis/internal/app"
	"github.com/portcullis-acs/portcullis/internal/audit"
	"github.com/portcullis-acs/portcullis/internal/events"
	"github.com/portcullis-acs/portcullis/internal/holiday"
	jobmetrics "github.com/portcullis-acs/portcullis/internal/jobs"
	"github.com/portcullis-acs/portcullis/internal/observability"
	"github.com/portcullis-acs/portcullis/internal/platform/cache"
	"github.com/portcullis-acs/portcullis/internal/platform/db"
	"github.com/portcullis-acs/portcullis/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, holiday cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	trackers := jobmetrics.NewMetrics(metrics.Registerer())

	calendar := holiday.NewCalendar(holiday.NewPGStore(pool), redisClient, cfg.HolidayCacheTTL, logger)
	if err := calendar.Refresh(ctx); err != nil {
		logger.Warn("holiday calendar warmup failed", slog.Any("error", err))
	}

	repo := access.NewMirrorRepository(pool)
	engine := access.NewEngine(repo,
		access.WithHolidayCalendar(calendar),
		access.WithSnapshotLoader(access.NewSnapshotReader(pool)),
	)
	auditService := audit.NewService(audit.NewPGRepository(pool))
	claims := events.NewIdempotencyStore(pool)
	processor := events.NewService(engine, auditService, claims, metrics, logger)

	decideJob := jobs.NewEventDecideJob(processor, logger, trackers)
	refreshJob := jobs.NewHolidayRefreshJob(calendar, logger, trackers)
	cleanupJob := jobs.NewAuditCleanupJob(auditService, claims, logger, trackers)

	cleanupTask, err := jobs.NewAuditCleanupTask(jobs.AuditCleanupPayload{
		Retention:      cfg.AuditRetention,
		ClaimRetention: cfg.AuditRetention,
	})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskEventDecide, Handler: decideJob.Handle},
			{Type: jobs.TaskHolidayRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskAuditCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: jobs.NewHolidayRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
