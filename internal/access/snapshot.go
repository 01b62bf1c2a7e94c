package access

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates that the requested record does not exist in the mirror.
var ErrNotFound = errors.New("access: not found")

// Repository reads the local mirror of the device-side rule database. It is a
// read-only collaborator: implementations never mutate and a decision never
// observes more than one snapshot. All list methods are batch reads so a full
// snapshot costs a constant number of round trips.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (*User, error)
	GetPortal(ctx context.Context, portalID int64) (*Portal, error)
	GetPortalRules(ctx context.Context, portalID int64) ([]AccessRule, error)
	GetUserDirectRules(ctx context.Context, userID int64) ([]AccessRule, error)
	GetGroupsOfUser(ctx context.Context, userID int64) ([]int64, error)
	GetGroupRules(ctx context.Context, groupIDs []int64) ([]GroupRule, error)
	GetZonesOfRules(ctx context.Context, ruleIDs []int64) (map[int64][]TimeZone, error)
}

// Snapshot is the immutable per-decision view of the mirror. Zones maps rule
// ID to the rule's linked zones, spans included, and is only populated for
// candidate rules.
type Snapshot struct {
	UserID   int64
	PortalID int64

	User   *User
	Portal *Portal

	PortalRules []AccessRule
	DirectRules []AccessRule
	GroupRules  []GroupRule

	Zones map[int64][]TimeZone
}

// LoadSnapshot assembles the decision inputs for one (user, portal) pair. A
// missing user or portal yields a snapshot with the corresponding pointer nil
// rather than an error; the engine turns those into denials, not failures.
// Zone windows are fetched only for candidate rules.
func LoadSnapshot(ctx context.Context, repo Repository, userID, portalID int64) (Snapshot, error) {
	snap := Snapshot{UserID: userID, PortalID: portalID}

	user, err := repo.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return snap, fmt.Errorf("access: load user: %w", err)
	}
	snap.User = user
	if snap.User == nil {
		return snap, nil
	}

	portal, err := repo.GetPortal(ctx, portalID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return snap, fmt.Errorf("access: load portal: %w", err)
	}
	snap.Portal = portal

	snap.PortalRules, err = repo.GetPortalRules(ctx, portalID)
	if err != nil {
		return snap, fmt.Errorf("access: load portal rules: %w", err)
	}
	if len(snap.PortalRules) == 0 {
		// Fail-closed with no rules to evaluate; skip the remaining reads.
		return snap, nil
	}

	snap.DirectRules, err = repo.GetUserDirectRules(ctx, userID)
	if err != nil {
		return snap, fmt.Errorf("access: load direct rules: %w", err)
	}

	groupIDs, err := repo.GetGroupsOfUser(ctx, userID)
	if err != nil {
		return snap, fmt.Errorf("access: load groups: %w", err)
	}
	if len(groupIDs) > 0 {
		snap.GroupRules, err = repo.GetGroupRules(ctx, groupIDs)
		if err != nil {
			return snap, fmt.Errorf("access: load group rules: %w", err)
		}
	}

	candidates := Candidates(snap)
	if len(candidates) == 0 {
		return snap, nil
	}
	ruleIDs := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ruleIDs = append(ruleIDs, c.Rule.ID)
	}
	snap.Zones, err = repo.GetZonesOfRules(ctx, ruleIDs)
	if err != nil {
		return snap, fmt.Errorf("access: load zones: %w", err)
	}
	return snap, nil
}
