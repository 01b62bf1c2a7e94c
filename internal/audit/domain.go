package audit

import (
	"time"

	"github.com/portcullis-acs/portcullis/internal/access"
)

// DecisionRecord is one persisted engine decision for an identification
// event, including the device's own verdict for divergence analysis.
type DecisionRecord struct {
	ID      int64
	EventID string

	UserID   int64
	PortalID int64
	DeviceID string
	At       time.Time

	Granted       bool
	Reason        access.Reason
	MatchedRuleID *int64

	// DeviceRuleID is the rule the physical device reported using, when any.
	// Diverged flags disagreement between it and the engine's re-derivation,
	// which usually means the mirror is stale.
	DeviceRuleID *int64
	Diverged     bool

	Trace []access.TraceEntry

	CreatedAt time.Time
}

// Filters narrow a timeline query.
type Filters struct {
	UserID   int64
	PortalID int64
	Granted  *bool
	Diverged *bool
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []DecisionRecord
	Paging PagingInfo
}
