package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/portcullis-acs/portcullis/internal/jobs"
)

// CalendarRefresher reloads the holiday calendar snapshot.
type CalendarRefresher interface {
	Refresh(ctx context.Context) error
}

// HolidayRefreshJob keeps the worker's calendar snapshot warm.
type HolidayRefreshJob struct {
	calendar CalendarRefresher
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewHolidayRefreshJob constructs the job.
func NewHolidayRefreshJob(calendar CalendarRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *HolidayRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &HolidayRefreshJob{calendar: calendar, logger: logger, metrics: metrics}
}

// Handle processes one TaskHolidayRefresh task.
func (j *HolidayRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("holiday_refresh")
	if err := j.calendar.Refresh(ctx); err != nil {
		j.logger.Error("refresh holiday calendar", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("holiday calendar refreshed")
	return tracker.End(nil)
}
