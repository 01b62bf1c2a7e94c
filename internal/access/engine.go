package access

import (
	"context"
	"fmt"
	"time"
)

// Engine re-derives the grant/deny verdict for identification events against
// the local mirror. A decision is a synchronous, side-effect-free computation
// over one snapshot; distinct decisions share no mutable state and may run
// concurrently.
type Engine struct {
	repo     Repository
	loader   SnapshotLoader
	calendar HolidayCalendar
}

// SnapshotLoader assembles the decision inputs for one identification.
// Implementations decide how consistent the read is; SnapshotReader gives a
// single RepeatableRead view per decision.
type SnapshotLoader interface {
	Load(ctx context.Context, userID, portalID int64) (Snapshot, error)
}

// Option customises engine construction.
type Option func(*Engine)

// WithHolidayCalendar supplies the holiday predicate used by the time-window
// matcher. Without it holiday flags are ignored and holiday-only spans never
// match.
func WithHolidayCalendar(cal HolidayCalendar) Option {
	return func(e *Engine) {
		e.calendar = cal
	}
}

// WithSnapshotLoader replaces the default per-call repository reads with the
// given loader.
func WithSnapshotLoader(l SnapshotLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// NewEngine constructs an Engine reading from the given repository.
func NewEngine(repo Repository, opts ...Option) *Engine {
	e := &Engine{repo: repo}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide loads one snapshot and evaluates it. Repository failures surface as
// an INDETERMINATE decision together with the error; they are never collapsed
// into a policy denial.
func (e *Engine) Decide(ctx context.Context, userID, portalID int64, at time.Time) (Decision, error) {
	snap, err := e.loadSnapshot(ctx, userID, portalID)
	if err != nil {
		return Decision{
			Reason:   ReasonIndeterminate,
			UserID:   userID,
			PortalID: portalID,
			At:       at,
		}, fmt.Errorf("access: decide: %w", err)
	}
	return Evaluate(snap, at, e.calendar), nil
}

func (e *Engine) loadSnapshot(ctx context.Context, userID, portalID int64) (Snapshot, error) {
	if e.loader != nil {
		return e.loader.Load(ctx, userID, portalID)
	}
	return LoadSnapshot(ctx, e.repo, userID, portalID)
}

// Evaluate runs the decision algorithm over a fully loaded snapshot. It is
// deterministic: the same snapshot and instant always produce the same
// Decision, trace included.
//
// Order of gates: missing user, validity window, candidate resolution, the
// full blocking pass, then the permitting pass. A time-matching BLOCK rule
// always wins even when a PERMIT rule also matches.
func Evaluate(snap Snapshot, at time.Time, cal HolidayCalendar) Decision {
	d := Decision{
		Reason:   ReasonNoMatchingPermit,
		UserID:   snap.UserID,
		PortalID: snap.PortalID,
		At:       at,
	}
	if snap.Portal != nil {
		d.PortalName = snap.Portal.Name
	}

	if snap.User == nil {
		d.Reason = ReasonUserNotFound
		return d
	}
	d.UserName = snap.User.Name

	if v := CheckValidity(*snap.User, at); !v.Valid {
		d.Reason = ReasonOutsideValidity
		return d
	}

	candidates := Candidates(snap)
	if len(candidates) == 0 {
		d.Reason = ReasonNoRules
		return d
	}

	var blocking, permitting []RuleCandidate
	for _, c := range candidates {
		if c.Rule.Kind == RuleBlock {
			blocking = append(blocking, c)
		} else {
			permitting = append(permitting, c)
		}
	}

	for _, c := range blocking {
		entry, matched := evaluateCandidate(c, snap.Zones[c.Rule.ID], at, cal)
		d.Trace = append(d.Trace, entry)
		if matched {
			rule := c.Rule
			d.Reason = ReasonBlockedByRule
			d.MatchedRule = &rule
			return d
		}
	}

	for _, c := range permitting {
		entry, matched := evaluateCandidate(c, snap.Zones[c.Rule.ID], at, cal)
		d.Trace = append(d.Trace, entry)
		if matched {
			rule := c.Rule
			d.Granted = true
			d.Reason = ReasonPermittedByRule
			d.MatchedRule = &rule
			return d
		}
	}

	return d
}

// evaluateCandidate applies the time-window matcher to one candidate rule. A
// rule with no linked zones is always active.
func evaluateCandidate(c RuleCandidate, zones []TimeZone, at time.Time, cal HolidayCalendar) (TraceEntry, bool) {
	entry := TraceEntry{
		RuleID:   c.Rule.ID,
		RuleName: c.Rule.Name,
		Kind:     c.Rule.Kind,
		ViaGroup: c.ViaGroup,
	}
	if len(zones) == 0 {
		entry.Outcome = OutcomeAlwaysOpen
		return entry, true
	}
	m, ok := MatchZones(zones, at, cal)
	if !ok {
		entry.Outcome = OutcomeNoWindow
		return entry, false
	}
	entry.Outcome = OutcomeMatched
	entry.ZoneID = m.Zone.ID
	entry.ZoneName = m.Zone.Name
	entry.SpanIdx = m.SpanIdx
	return entry, true
}
