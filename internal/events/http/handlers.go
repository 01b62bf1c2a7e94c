// Package eventshttp accepts identification events from the device gateway
// and hands them to the queue for asynchronous processing.
package eventshttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/portcullis-acs/portcullis/internal/events"
	"github.com/portcullis-acs/portcullis/internal/platform/httpx"
)

// Enqueuer submits events to the processing queue.
type Enqueuer interface {
	EnqueueEventDecide(ctx context.Context, evt events.Event) error
}

// Handler serves the event ingestion endpoint.
type Handler struct {
	logger *slog.Logger
	queue  Enqueuer
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, queue Enqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, queue: queue}
}

// MountRoutes registers the event routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/events", h.ingest)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	var evt events.Event
	if err := httpx.DecodeJSON(r, &evt); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if err := evt.Validate(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.queue.EnqueueEventDecide(r.Context(), evt); err != nil {
		h.logger.Error("enqueue event", slog.String("event", evt.ID), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"event_id": evt.ID})
}
