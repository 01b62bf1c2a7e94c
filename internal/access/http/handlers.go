// Package accesshttp exposes the decision engine and the decision audit log
// over JSON.
package accesshttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/portcullis-acs/portcullis/internal/access"
	"github.com/portcullis-acs/portcullis/internal/audit"
	"github.com/portcullis-acs/portcullis/internal/observability"
	"github.com/portcullis-acs/portcullis/internal/platform/httpx"
)

// Decider runs one access decision.
type Decider interface {
	Decide(ctx context.Context, userID, portalID int64, at time.Time) (access.Decision, error)
}

// TimelineService queries the decision audit log.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.Filters) (audit.Result, error)
}

// Handler serves the decision API.
type Handler struct {
	logger   *slog.Logger
	engine   Decider
	timeline TimelineService
	metrics  *observability.Metrics
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler constructs the handler. Metrics may be nil.
func NewHandler(logger *slog.Logger, engine Decider, timeline TimelineService, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		engine:   engine,
		timeline: timeline,
		metrics:  metrics,
		validate: validator.New(),
		now:      time.Now,
	}
}

// MountRoutes registers the decision routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/decisions", h.decide)
	r.Get("/decisions", h.listDecisions)
}

type decideRequest struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	PortalID int64  `json:"portal_id" validate:"required,gt=0"`
	At       string `json:"at" validate:"omitempty"`
}

type decideResponse struct {
	Granted     bool                `json:"granted"`
	Reason      access.Reason       `json:"reason"`
	MatchedRule *matchedRule        `json:"matched_rule,omitempty"`
	UserID      int64               `json:"user_id"`
	UserName    string              `json:"user_name,omitempty"`
	PortalID    int64               `json:"portal_id"`
	PortalName  string              `json:"portal_name,omitempty"`
	At          time.Time           `json:"at"`
	Trace       []access.TraceEntry `json:"trace,omitempty"`
	Report      string              `json:"report,omitempty"`
}

type matchedRule struct {
	ID   int64           `json:"id"`
	Name string          `json:"name"`
	Kind access.RuleKind `json:"kind"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	at := h.now().UTC()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "at must be RFC3339")
			return
		}
		at = parsed
	}

	decision, err := h.engine.Decide(r.Context(), req.UserID, req.PortalID, at)
	if err != nil {
		// Mirror unavailability is not a denial; the caller must be able to
		// tell the two apart.
		h.logger.Error("decision indeterminate", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrIndeterminate)
		return
	}
	h.metrics.ObserveDecision(string(decision.Reason))

	resp := decideResponse{
		Granted:    decision.Granted,
		Reason:     decision.Reason,
		UserID:     decision.UserID,
		UserName:   decision.UserName,
		PortalID:   decision.PortalID,
		PortalName: decision.PortalName,
		At:         decision.At,
		Trace:      decision.Trace,
	}
	if decision.MatchedRule != nil {
		resp.MatchedRule = &matchedRule{
			ID:   decision.MatchedRule.ID,
			Name: decision.MatchedRule.Name,
			Kind: decision.MatchedRule.Kind,
		}
	}
	if r.URL.Query().Get("verbose") == "1" {
		resp.Report = access.FormatDecision(decision)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listDecisions(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.timeline.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load decision timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"rows":   result.Rows,
		"paging": result.Paging,
	})
}

func parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	var filters audit.Filters
	var err error

	if filters.UserID, err = parseInt(q.Get("user_id")); err != nil {
		return filters, err
	}
	if filters.PortalID, err = parseInt(q.Get("portal_id")); err != nil {
		return filters, err
	}
	if v := q.Get("granted"); v != "" {
		granted, err := strconv.ParseBool(v)
		if err != nil {
			return filters, err
		}
		filters.Granted = &granted
	}
	if v := q.Get("diverged"); v != "" {
		diverged, err := strconv.ParseBool(v)
		if err != nil {
			return filters, err
		}
		filters.Diverged = &diverged
	}
	if v := q.Get("from"); v != "" {
		if filters.From, err = time.Parse(time.RFC3339, v); err != nil {
			return filters, err
		}
	}
	if v := q.Get("to"); v != "" {
		if filters.To, err = time.Parse(time.RFC3339, v); err != nil {
			return filters, err
		}
	}
	if page, err := parseInt(q.Get("page")); err == nil {
		filters.Page = int(page)
	}
	if size, err := parseInt(q.Get("page_size")); err == nil {
		filters.PageSize = int(size)
	}
	return filters, nil
}

func parseInt(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
