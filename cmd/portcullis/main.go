package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/portcullis-acs/portcullis/internal/access"
	accesshttp "github.com/portcullis-acs/portcullis/internal/access/http"
	"github.com/portcullis-acs/portcullis/internal/app"
	"github.com/portcullis-acs/portcullis/internal/audit"
	eventshttp "github.com/portcullis-acs/portcullis/internal/events/http"
	"github.com/portcullis-acs/portcullis/internal/holiday"
	"github.com/portcullis-acs/portcullis/internal/observability"
	"github.com/portcullis-acs/portcullis/internal/platform/cache"
	"github.com/portcullis-acs/portcullis/internal/platform/db"
	"github.com/portcullis-acs/portcullis/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	calendar := holiday.NewCalendar(holiday.NewPGStore(pool), redisClient, cfg.HolidayCacheTTL, logger)
	if err := calendar.Refresh(ctx); err != nil {
		// Decisions degrade to weekday-only matching until the first
		// successful refresh; holiday-only spans fail closed.
		logger.Warn("holiday calendar warmup failed", slog.Any("error", err))
	}

	repo := access.NewMirrorRepository(pool)
	engine := access.NewEngine(repo,
		access.WithHolidayCalendar(calendar),
		access.WithSnapshotLoader(access.NewSnapshotReader(pool)),
	)

	metrics := observability.NewMetrics()
	auditService := audit.NewService(audit.NewPGRepository(pool))

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		AccessHandler: accesshttp.NewHandler(logger, engine, auditService, metrics),
		EventsHandler: eventshttp.NewHandler(logger, queueClient),
		Pool:          pool,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
