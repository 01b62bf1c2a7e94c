package eventshttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/portcullis-acs/portcullis/internal/events"
)

type stubQueue struct {
	enqueued []events.Event
	err      error
}

func (s *stubQueue) EnqueueEventDecide(ctx context.Context, evt events.Event) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, evt)
	return nil
}

func newTestRouter(queue Enqueuer) http.Handler {
	r := chi.NewRouter()
	h := NewHandler(nil, queue)
	r.Route("/api/v1", h.MountRoutes)
	return r
}

func TestIngestEnqueues(t *testing.T) {
	queue := &stubQueue{}
	router := newTestRouter(queue)

	body := `{"user_id":1,"portal_id":2,"event_time":1710237600,"device_id":"turnstile-03","device_reported_rule_id":4}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, err := uuid.Parse(resp["event_id"]); err != nil {
		t.Fatalf("expected generated uuid, got %q", resp["event_id"])
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued event, got %d", len(queue.enqueued))
	}
	evt := queue.enqueued[0]
	if evt.DeviceReportedRuleID == nil || *evt.DeviceReportedRuleID != 4 {
		t.Fatalf("device rule not carried: %v", evt.DeviceReportedRuleID)
	}
}

func TestIngestKeepsClientEventID(t *testing.T) {
	queue := &stubQueue{}
	router := newTestRouter(queue)

	id := uuid.NewString()
	body := `{"id":"` + id + `","user_id":1,"portal_id":2,"event_time":1710237600,"device_id":"d1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if queue.enqueued[0].ID != id {
		t.Fatalf("expected client id %s, got %s", id, queue.enqueued[0].ID)
	}
}

func TestIngestValidation(t *testing.T) {
	router := newTestRouter(&stubQueue{})

	for _, body := range []string{
		`{`,
		`{"user_id":0,"portal_id":2,"event_time":1710237600,"device_id":"d1"}`,
		`{"user_id":1,"portal_id":2,"event_time":1710237600}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
		}
	}
}

func TestIngestQueueDown(t *testing.T) {
	router := newTestRouter(&stubQueue{err: errors.New("redis down")})

	body := `{"user_id":1,"portal_id":2,"event_time":1710237600,"device_id":"d1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
