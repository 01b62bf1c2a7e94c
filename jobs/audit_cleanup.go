package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/portcullis-acs/portcullis/internal/jobs"
)

// DecisionJanitor trims stored decisions past retention.
type DecisionJanitor interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// ClaimJanitor trims old idempotency claims.
type ClaimJanitor interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// AuditCleanupJob enforces the audit retention policy.
type AuditCleanupJob struct {
	decisions DecisionJanitor
	claims    ClaimJanitor
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewAuditCleanupJob constructs the job.
func NewAuditCleanupJob(decisions DecisionJanitor, claims ClaimJanitor, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditCleanupJob{decisions: decisions, claims: claims, logger: logger, metrics: metrics}
}

// Handle processes one TaskAuditCleanup task.
func (j *AuditCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("audit_cleanup")

	var payload AuditCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("malformed cleanup payload", slog.Any("error", err))
		return tracker.End(asynq.SkipRetry)
	}
	if payload.Retention <= 0 {
		return tracker.End(asynq.SkipRetry)
	}

	deleted, err := j.decisions.Cleanup(ctx, payload.Retention)
	if err != nil {
		j.logger.Error("cleanup decisions", slog.Any("error", err))
		return tracker.End(err)
	}
	if payload.ClaimRetention > 0 && j.claims != nil {
		if err := j.claims.Cleanup(ctx, payload.ClaimRetention); err != nil {
			j.logger.Error("cleanup event claims", slog.Any("error", err))
			return tracker.End(err)
		}
	}
	j.logger.Info("audit cleanup done", slog.Int64("deleted", deleted))
	return tracker.End(nil)
}
