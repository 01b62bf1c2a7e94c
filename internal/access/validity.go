package access

import "time"

// Validity is the outcome of the activation/expiration window gate.
type Validity struct {
	Valid  bool
	Reason string
}

// CheckValidity reports whether the user is inside their validity window at
// the given instant. Absent bounds are treated as unbounded.
func CheckValidity(u User, at time.Time) Validity {
	if u.ActivationAt != nil && at.Before(*u.ActivationAt) {
		return Validity{Reason: "not yet active"}
	}
	if u.ExpirationAt != nil && at.After(*u.ExpirationAt) {
		return Validity{Reason: "expired"}
	}
	return Validity{Valid: true}
}
