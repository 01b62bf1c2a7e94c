package accesshttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portcullis-acs/portcullis/internal/access"
	"github.com/portcullis-acs/portcullis/internal/audit"
)

type stubDecider struct {
	decision access.Decision
	err      error
	lastAt   time.Time
}

func (s *stubDecider) Decide(ctx context.Context, userID, portalID int64, at time.Time) (access.Decision, error) {
	s.lastAt = at
	d := s.decision
	d.UserID = userID
	d.PortalID = portalID
	d.At = at
	return d, s.err
}

type stubTimeline struct {
	result      audit.Result
	lastFilters audit.Filters
}

func (s *stubTimeline) Timeline(ctx context.Context, filters audit.Filters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func newTestRouter(decider Decider, timeline TimelineService) http.Handler {
	r := chi.NewRouter()
	h := NewHandler(nil, decider, timeline, nil)
	r.Route("/api/v1", h.MountRoutes)
	return r
}

func TestDecideEndpoint(t *testing.T) {
	decider := &stubDecider{decision: access.Decision{
		Granted:     true,
		Reason:      access.ReasonPermittedByRule,
		MatchedRule: &access.AccessRule{ID: 1, Name: "Office Hours", Kind: access.RulePermit},
	}}
	router := newTestRouter(decider, &stubTimeline{})

	body := `{"user_id":1,"portal_id":2,"at":"2024-03-12T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp decideResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Granted)
	assert.Equal(t, access.ReasonPermittedByRule, resp.Reason)
	require.NotNil(t, resp.MatchedRule)
	assert.Equal(t, int64(1), resp.MatchedRule.ID)
	assert.Empty(t, resp.Report)
	assert.Equal(t, time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC), decider.lastAt)
}

func TestDecideVerboseIncludesReport(t *testing.T) {
	decider := &stubDecider{decision: access.Decision{Reason: access.ReasonNoMatchingPermit}}
	router := newTestRouter(decider, &stubTimeline{})

	body := `{"user_id":1,"portal_id":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions?verbose=1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp decideResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Report, "=== ACCESS DECISION ===")
}

func TestDecideValidation(t *testing.T) {
	router := newTestRouter(&stubDecider{}, &stubTimeline{})

	for _, body := range []string{
		`{`,
		`{"user_id":0,"portal_id":2}`,
		`{"user_id":1,"portal_id":2,"at":"yesterday"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestDecideIndeterminateIs503(t *testing.T) {
	decider := &stubDecider{err: errors.New("mirror unreachable")}
	router := newTestRouter(decider, &stubTimeline{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions", strings.NewReader(`{"user_id":1,"portal_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Indeterminate")
}

func TestListDecisionsFilterParsing(t *testing.T) {
	timeline := &stubTimeline{}
	router := newTestRouter(&stubDecider{}, timeline)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/decisions?user_id=7&portal_id=3&granted=false&diverged=true&page=2&page_size=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), timeline.lastFilters.UserID)
	assert.Equal(t, int64(3), timeline.lastFilters.PortalID)
	require.NotNil(t, timeline.lastFilters.Granted)
	assert.False(t, *timeline.lastFilters.Granted)
	require.NotNil(t, timeline.lastFilters.Diverged)
	assert.True(t, *timeline.lastFilters.Diverged)
	assert.Equal(t, 2, timeline.lastFilters.Page)
	assert.Equal(t, 10, timeline.lastFilters.PageSize)
}

func TestListDecisionsBadFilter(t *testing.T) {
	router := newTestRouter(&stubDecider{}, &stubTimeline{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/decisions?granted=maybe", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
