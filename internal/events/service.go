package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/portcullis-acs/portcullis/internal/access"
	"github.com/portcullis-acs/portcullis/internal/audit"
	"github.com/portcullis-acs/portcullis/internal/observability"
)

// Decider re-derives the verdict for one identification.
type Decider interface {
	Decide(ctx context.Context, userID, portalID int64, at time.Time) (access.Decision, error)
}

// Recorder persists decision records.
type Recorder interface {
	Record(ctx context.Context, rec audit.DecisionRecord) (int64, error)
}

// Deduper claims event IDs exactly once.
type Deduper interface {
	CheckAndInsert(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// Service processes identification events end to end: dedupe, decide,
// divergence check, persist.
type Service struct {
	engine  Decider
	audits  Recorder
	dedupe  Deduper
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService constructs the event processing service. Metrics may be nil.
func NewService(engine Decider, audits Recorder, dedupe Deduper, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:  engine,
		audits:  audits,
		dedupe:  dedupe,
		metrics: metrics,
		logger:  logger,
	}
}

// Process handles one event. Duplicate events return ErrDuplicateEvent.
// Engine indeterminacy releases the dedupe claim and propagates the error so
// the queue can retry; a policy denial is a normal, recorded outcome.
func (s *Service) Process(ctx context.Context, evt Event) (audit.DecisionRecord, error) {
	if err := evt.Validate(); err != nil {
		return audit.DecisionRecord{}, err
	}
	if err := s.dedupe.CheckAndInsert(ctx, evt.ID); err != nil {
		return audit.DecisionRecord{}, err
	}

	decision, err := s.engine.Decide(ctx, evt.UserID, evt.PortalID, evt.At())
	if err != nil {
		if relErr := s.dedupe.Release(ctx, evt.ID); relErr != nil {
			s.logger.Warn("release dedupe claim", slog.String("event", evt.ID), slog.Any("error", relErr))
		}
		return audit.DecisionRecord{}, fmt.Errorf("events: decide %s: %w", evt.ID, err)
	}

	rec := audit.DecisionRecord{
		EventID:      evt.ID,
		UserID:       evt.UserID,
		PortalID:     evt.PortalID,
		DeviceID:     evt.DeviceID,
		At:           decision.At,
		Granted:      decision.Granted,
		Reason:       decision.Reason,
		DeviceRuleID: evt.DeviceReportedRuleID,
		Trace:        decision.Trace,
	}
	if decision.MatchedRule != nil {
		id := decision.MatchedRule.ID
		rec.MatchedRuleID = &id
	}
	rec.Diverged = diverged(evt.DeviceReportedRuleID, rec.MatchedRuleID)

	s.metrics.ObserveDecision(string(decision.Reason))
	if rec.Diverged {
		// Divergence usually means the local mirror lags the device; it is
		// surfaced, never hidden.
		s.metrics.ObserveDivergence(evt.DeviceID)
		s.logger.Warn("engine disagrees with device",
			slog.String("event", evt.ID),
			slog.String("device", evt.DeviceID),
			slog.Any("device_rule", evt.DeviceReportedRuleID),
			slog.Any("engine_rule", rec.MatchedRuleID),
		)
	}

	if _, err := s.audits.Record(ctx, rec); err != nil {
		if relErr := s.dedupe.Release(ctx, evt.ID); relErr != nil {
			s.logger.Warn("release dedupe claim", slog.String("event", evt.ID), slog.Any("error", relErr))
		}
		return audit.DecisionRecord{}, fmt.Errorf("events: record %s: %w", evt.ID, err)
	}
	return rec, nil
}

// diverged reports whether the device applied a different rule than the
// engine derived. A device that reported nothing cannot diverge.
func diverged(deviceRule, engineRule *int64) bool {
	if deviceRule == nil {
		return false
	}
	return engineRule == nil || *engineRule != *deviceRule
}
