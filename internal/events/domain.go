// Package events ingests identification events reported by portal devices and
// re-derives each decision through the access engine.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one identification reported by a device. DeviceReportedRuleID is
// the rule the device claims to have applied; it is informational only and
// never feeds the engine's decision.
type Event struct {
	ID                   string `json:"id"`
	UserID               int64  `json:"user_id"`
	PortalID             int64  `json:"portal_id"`
	EventTime            int64  `json:"event_time"` // unix seconds
	DeviceID             string `json:"device_id"`
	DeviceReportedRuleID *int64 `json:"device_reported_rule_id,omitempty"`
}

// ErrDuplicateEvent indicates an event ID that was already processed.
var ErrDuplicateEvent = errors.New("events: duplicate event")

// Validate checks the structural invariants of an event.
func (e Event) Validate() error {
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("events: invalid event id: %w", err)
	}
	if e.UserID <= 0 {
		return errors.New("events: user id required")
	}
	if e.PortalID <= 0 {
		return errors.New("events: portal id required")
	}
	if e.EventTime <= 0 {
		return errors.New("events: event time required")
	}
	if e.DeviceID == "" {
		return errors.New("events: device id required")
	}
	return nil
}

// At returns the event instant in UTC.
func (e Event) At() time.Time {
	return time.Unix(e.EventTime, 0).UTC()
}
