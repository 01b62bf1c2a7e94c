package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/portcullis-acs/portcullis/internal/audit"
	"github.com/portcullis-acs/portcullis/internal/events"
	jobmetrics "github.com/portcullis-acs/portcullis/internal/jobs"
)

// EventProcessor handles one identification event.
type EventProcessor interface {
	Process(ctx context.Context, evt events.Event) (audit.DecisionRecord, error)
}

// EventDecideJob drives the events service from the queue.
type EventDecideJob struct {
	processor EventProcessor
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewEventDecideJob constructs the job.
func NewEventDecideJob(processor EventProcessor, logger *slog.Logger, metrics *jobmetrics.Metrics) *EventDecideJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventDecideJob{processor: processor, logger: logger, metrics: metrics}
}

// Handle processes one TaskEventDecide task. Malformed payloads and
// duplicates are not retried; indeterminate decisions are, with the dedupe
// claim already released by the service.
func (j *EventDecideJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("event_decide")

	var evt events.Event
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		j.logger.Error("malformed event payload", slog.Any("error", err))
		return tracker.End(asynq.SkipRetry)
	}

	rec, err := j.processor.Process(ctx, evt)
	if err != nil {
		if errors.Is(err, events.ErrDuplicateEvent) {
			j.logger.Info("duplicate event skipped", slog.String("event", evt.ID))
			return tracker.End(nil)
		}
		j.logger.Error("process event", slog.String("event", evt.ID), slog.Any("error", err))
		return tracker.End(err)
	}

	j.logger.Info("event decided",
		slog.String("event", evt.ID),
		slog.Bool("granted", rec.Granted),
		slog.String("reason", string(rec.Reason)),
		slog.Bool("diverged", rec.Diverged),
	)
	return tracker.End(nil)
}
