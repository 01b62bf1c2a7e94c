package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/portcullis-acs/portcullis/internal/audit"
	"github.com/portcullis-acs/portcullis/internal/events"
)

type stubProcessor struct {
	rec  audit.DecisionRecord
	err  error
	seen []events.Event
}

func (s *stubProcessor) Process(ctx context.Context, evt events.Event) (audit.DecisionRecord, error) {
	s.seen = append(s.seen, evt)
	return s.rec, s.err
}

func testEvent() events.Event {
	return events.Event{
		ID:        "7b1c2a4e-7b5f-4d2c-9a1a-3f62a2a33c01",
		UserID:    1,
		PortalID:  2,
		EventTime: time.Now().Unix(),
		DeviceID:  "turnstile-03",
	}
}

func TestEventDecideHandle(t *testing.T) {
	processor := &stubProcessor{rec: audit.DecisionRecord{Granted: true}}
	job := NewEventDecideJob(processor, nil, nil)

	task, err := NewEventDecideTask(testEvent())
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(processor.seen) != 1 {
		t.Fatalf("expected 1 processed event, got %d", len(processor.seen))
	}
}

func TestEventDecideDuplicateNotRetried(t *testing.T) {
	processor := &stubProcessor{err: events.ErrDuplicateEvent}
	job := NewEventDecideJob(processor, nil, nil)

	task, _ := NewEventDecideTask(testEvent())
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("duplicates must not surface as failures: %v", err)
	}
}

func TestEventDecideIndeterminateRetried(t *testing.T) {
	processor := &stubProcessor{err: errors.New("mirror unreachable")}
	job := NewEventDecideJob(processor, nil, nil)

	task, _ := NewEventDecideTask(testEvent())
	err := job.Handle(context.Background(), task)
	if err == nil {
		t.Fatal("expected retryable error")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatal("indeterminate outcomes must be retried")
	}
}

func TestEventDecideMalformedPayloadSkipped(t *testing.T) {
	job := NewEventDecideJob(&stubProcessor{}, nil, nil)

	task := asynq.NewTask(TaskEventDecide, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
