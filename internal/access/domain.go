package access

import "time"

// RuleKind distinguishes permitting rules from blocking rules.
type RuleKind string

const (
	RulePermit RuleKind = "PERMIT"
	RuleBlock  RuleKind = "BLOCK"
)

// Reason classifies the outcome of an access decision.
type Reason string

const (
	ReasonPermittedByRule    Reason = "PERMITTED_BY_RULE"
	ReasonUserNotFound       Reason = "USER_NOT_FOUND"
	ReasonOutsideValidity    Reason = "OUTSIDE_VALIDITY"
	ReasonNoRules            Reason = "NO_RULES_FOR_PORTAL_OR_USER"
	ReasonBlockedByRule      Reason = "BLOCKED_BY_RULE"
	ReasonNoMatchingPermit   Reason = "NO_MATCHING_PERMIT_RULE"
	ReasonIndeterminate      Reason = "INDETERMINATE"
)

// User is a credential holder mirrored from the device database.
type User struct {
	ID               int64
	Name             string
	RegistrationCode string

	// Nil bound means unbounded on that side.
	ActivationAt *time.Time
	ExpirationAt *time.Time
}

// Portal is a controlled physical passage linking two areas.
type Portal struct {
	ID         int64
	Name       string
	FromAreaID int64
	ToAreaID   int64
}

// AccessRule is a named PERMIT or BLOCK policy. Priority is persisted and
// surfaced but never consulted by the decision loop; same-kind ties resolve by
// ascending rule ID.
type AccessRule struct {
	ID       int64
	Name     string
	Kind     RuleKind
	Priority int
}

// TimeZone is a named ordered set of recurring time windows (domain term, not a
// geographic time zone).
type TimeZone struct {
	ID    int64
	Name  string
	Spans []TimeSpan
}

// TimeSpan is one recurring window: start/end seconds-of-day (inclusive, same
// day only) plus day-of-week and holiday applicability flags.
type TimeSpan struct {
	Start int // seconds since midnight, 0..86399
	End   int // seconds since midnight, Start <= End

	Mon, Tue, Wed, Thu, Fri, Sat, Sun bool

	Hol1, Hol2, Hol3 bool
}

// Day reports whether the span applies on the given weekday, Monday = 0.
func (s TimeSpan) Day(dow int) bool {
	switch dow {
	case 0:
		return s.Mon
	case 1:
		return s.Tue
	case 2:
		return s.Wed
	case 3:
		return s.Thu
	case 4:
		return s.Fri
	case 5:
		return s.Sat
	case 6:
		return s.Sun
	}
	return false
}

// Holiday reports whether the span applies on holiday slot n (1..3).
func (s TimeSpan) Holiday(n int) bool {
	switch n {
	case 1:
		return s.Hol1
	case 2:
		return s.Hol2
	case 3:
		return s.Hol3
	}
	return false
}

// GroupRule is an access rule granted through group membership.
type GroupRule struct {
	GroupID int64
	Rule    AccessRule
}

// RuleCandidate is a rule eligible for evaluation in one (user, portal)
// decision. ViaGroup is nil for direct grants; when a rule is granted both ways
// the direct grant wins the annotation.
type RuleCandidate struct {
	Rule     AccessRule
	ViaGroup *int64
}

// TraceOutcome records what the matcher concluded for one evaluated rule.
type TraceOutcome string

const (
	OutcomeMatched    TraceOutcome = "MATCHED"
	OutcomeNoWindow   TraceOutcome = "NO_WINDOW"
	OutcomeAlwaysOpen TraceOutcome = "ALWAYS_OPEN"
)

// TraceEntry is one line of the evaluation trace. Every candidate the engine
// evaluates leaves exactly one entry, matched or not.
type TraceEntry struct {
	RuleID   int64
	RuleName string
	Kind     RuleKind
	ViaGroup *int64

	// Zone/span identify the matching window, zero-valued when no window
	// matched or the rule has no linked zones.
	ZoneID   int64
	ZoneName string
	SpanIdx  int

	Outcome TraceOutcome
}

// Decision is the engine's verdict for one identification event together with
// its full evaluation trace.
type Decision struct {
	Granted     bool
	Reason      Reason
	MatchedRule *AccessRule
	Trace       []TraceEntry

	UserID     int64
	UserName   string
	PortalID   int64
	PortalName string
	At         time.Time
}
