package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/portcullis-acs/portcullis/internal/events"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueEvents carries identification-event processing, weighted above
	// housekeeping so decisions are not starved by cleanups.
	QueueEvents = "events"

	// TaskEventDecide re-derives and records the decision for one event.
	TaskEventDecide = "event:decide"
	// TaskHolidayRefresh warms the holiday calendar snapshot.
	TaskHolidayRefresh = "holiday:refresh"
	// TaskAuditCleanup trims decision records past retention.
	TaskAuditCleanup = "audit:cleanup"
)

// NewEventDecideTask constructs the task for one identification event.
func NewEventDecideTask(evt events.Event) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEventDecide, data), nil
}

// NewHolidayRefreshTask constructs the calendar warmup task.
func NewHolidayRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskHolidayRefresh, nil)
}

// AuditCleanupPayload carries the retention windows for the cleanup task.
type AuditCleanupPayload struct {
	Retention      time.Duration `json:"retention"`
	ClaimRetention time.Duration `json:"claim_retention"`
}

// NewAuditCleanupTask constructs the retention cleanup task.
func NewAuditCleanupTask(payload AuditCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueEventDecide enqueues processing for one identification event.
func (c *Client) EnqueueEventDecide(ctx context.Context, evt events.Event) error {
	task, err := NewEventDecideTask(evt)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueEvents), asynq.MaxRetry(5))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
