package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portcullis-acs/portcullis/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// MirrorRepository reads the Postgres mirror of the device rule database. The
// mirror is populated by the synchronization job; this type never writes.
type MirrorRepository struct {
	db dbtx
}

// NewMirrorRepository constructs a MirrorRepository backed by the pool.
func NewMirrorRepository(pool *pgxpool.Pool) *MirrorRepository {
	return &MirrorRepository{db: pool}
}

// WithTx returns a repository bound to the given transaction, letting a whole
// snapshot load share one RepeatableRead view.
func (r *MirrorRepository) WithTx(tx pgx.Tx) *MirrorRepository {
	return &MirrorRepository{db: tx}
}

// SnapshotReader loads whole snapshots inside one RepeatableRead transaction,
// so a decision never observes a half-applied mirror refresh.
type SnapshotReader struct {
	pool *pgxpool.Pool
	repo *MirrorRepository
}

// NewSnapshotReader constructs a SnapshotReader over the pool.
func NewSnapshotReader(pool *pgxpool.Pool) *SnapshotReader {
	return &SnapshotReader{pool: pool, repo: NewMirrorRepository(pool)}
}

// Load implements SnapshotLoader.
func (s *SnapshotReader) Load(ctx context.Context, userID, portalID int64) (Snapshot, error) {
	var snap Snapshot
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		snap, err = LoadSnapshot(ctx, s.repo.WithTx(tx), userID, portalID)
		return err
	})
	return snap, err
}

// GetUser fetches one credential holder. Returns ErrNotFound when absent.
func (r *MirrorRepository) GetUser(ctx context.Context, userID int64) (*User, error) {
	const query = `
		SELECT id, name, registration_code, activation_at, expiration_at
		FROM users
		WHERE id = $1`
	var (
		u          User
		activation pgtype.Timestamptz
		expiration pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(&u.ID, &u.Name, &u.RegistrationCode, &activation, &expiration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("access: get user: %w", err)
	}
	if activation.Valid {
		t := activation.Time
		u.ActivationAt = &t
	}
	if expiration.Valid {
		t := expiration.Time
		u.ExpirationAt = &t
	}
	return &u, nil
}

// GetPortal fetches one portal. Returns ErrNotFound when absent.
func (r *MirrorRepository) GetPortal(ctx context.Context, portalID int64) (*Portal, error) {
	const query = `
		SELECT id, name, from_area_id, to_area_id
		FROM portals
		WHERE id = $1`
	var p Portal
	err := r.db.QueryRow(ctx, query, portalID).Scan(&p.ID, &p.Name, &p.FromAreaID, &p.ToAreaID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("portal %d: %w", portalID, ErrNotFound)
		}
		return nil, fmt.Errorf("access: get portal: %w", err)
	}
	return &p, nil
}

// GetPortalRules lists the rules linked to a portal, ascending rule ID.
func (r *MirrorRepository) GetPortalRules(ctx context.Context, portalID int64) ([]AccessRule, error) {
	const query = `
		SELECT ar.id, ar.name, ar.kind, ar.priority
		FROM access_rules ar
		JOIN portal_access_rules par ON par.rule_id = ar.id
		WHERE par.portal_id = $1
		ORDER BY ar.id`
	rows, err := r.db.Query(ctx, query, portalID)
	if err != nil {
		return nil, fmt.Errorf("access: portal rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// GetUserDirectRules lists the rules granted directly to a user.
func (r *MirrorRepository) GetUserDirectRules(ctx context.Context, userID int64) ([]AccessRule, error) {
	const query = `
		SELECT ar.id, ar.name, ar.kind, ar.priority
		FROM access_rules ar
		JOIN user_access_rules uar ON uar.rule_id = ar.id
		WHERE uar.user_id = $1
		ORDER BY ar.id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("access: direct rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// GetGroupsOfUser lists the IDs of the groups the user belongs to.
func (r *MirrorRepository) GetGroupsOfUser(ctx context.Context, userID int64) ([]int64, error) {
	const query = `SELECT group_id FROM user_groups WHERE user_id = $1 ORDER BY group_id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("access: groups of user: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("access: groups of user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetGroupRules lists the rules granted to any of the given groups.
func (r *MirrorRepository) GetGroupRules(ctx context.Context, groupIDs []int64) ([]GroupRule, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	const query = `
		SELECT gar.group_id, ar.id, ar.name, ar.kind, ar.priority
		FROM access_rules ar
		JOIN group_access_rules gar ON gar.rule_id = ar.id
		WHERE gar.group_id = ANY($1)
		ORDER BY ar.id, gar.group_id`
	rows, err := r.db.Query(ctx, query, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("access: group rules: %w", err)
	}
	defer rows.Close()

	var grants []GroupRule
	for rows.Next() {
		var gr GroupRule
		if err := rows.Scan(&gr.GroupID, &gr.Rule.ID, &gr.Rule.Name, &gr.Rule.Kind, &gr.Rule.Priority); err != nil {
			return nil, fmt.Errorf("access: group rules: %w", err)
		}
		grants = append(grants, gr)
	}
	return grants, rows.Err()
}

// GetZonesOfRules loads the zones, spans included, linked to the given rules
// in one query. Zone and span ordering follows the device collection order.
func (r *MirrorRepository) GetZonesOfRules(ctx context.Context, ruleIDs []int64) (map[int64][]TimeZone, error) {
	if len(ruleIDs) == 0 {
		return map[int64][]TimeZone{}, nil
	}
	const query = `
		SELECT artz.rule_id, tz.id, tz.name,
		       ts.start_sec, ts.end_sec,
		       ts.mon, ts.tue, ts.wed, ts.thu, ts.fri, ts.sat, ts.sun,
		       ts.hol1, ts.hol2, ts.hol3
		FROM access_rule_time_zones artz
		JOIN time_zones tz ON tz.id = artz.zone_id
		LEFT JOIN time_spans ts ON ts.zone_id = tz.id
		WHERE artz.rule_id = ANY($1)
		ORDER BY artz.rule_id, artz.ord, tz.id, ts.ord`
	rows, err := r.db.Query(ctx, query, ruleIDs)
	if err != nil {
		return nil, fmt.Errorf("access: zones of rules: %w", err)
	}
	defer rows.Close()

	zones := make(map[int64][]TimeZone)
	for rows.Next() {
		var (
			ruleID   int64
			zoneID   int64
			zoneName string
			start    pgtype.Int4
			end      pgtype.Int4
			flags    [10]pgtype.Bool
		)
		if err := rows.Scan(&ruleID, &zoneID, &zoneName,
			&start, &end,
			&flags[0], &flags[1], &flags[2], &flags[3], &flags[4], &flags[5], &flags[6],
			&flags[7], &flags[8], &flags[9]); err != nil {
			return nil, fmt.Errorf("access: zones of rules: %w", err)
		}

		list := zones[ruleID]
		if len(list) == 0 || list[len(list)-1].ID != zoneID {
			list = append(list, TimeZone{ID: zoneID, Name: zoneName})
		}
		if start.Valid {
			// Null span columns mean a zone with no spans (LEFT JOIN miss).
			// Such a zone stays in the snapshot: the rule has linked zones,
			// so it must not degrade to always-active.
			span := TimeSpan{
				Start: int(start.Int32),
				End:   int(end.Int32),
				Mon:   flags[0].Bool, Tue: flags[1].Bool, Wed: flags[2].Bool,
				Thu: flags[3].Bool, Fri: flags[4].Bool, Sat: flags[5].Bool,
				Sun: flags[6].Bool,
				Hol1: flags[7].Bool, Hol2: flags[8].Bool, Hol3: flags[9].Bool,
			}
			last := &list[len(list)-1]
			last.Spans = append(last.Spans, span)
		}
		zones[ruleID] = list
	}
	return zones, rows.Err()
}

func scanRules(rows pgx.Rows) ([]AccessRule, error) {
	var rules []AccessRule
	for rows.Next() {
		var rule AccessRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Kind, &rule.Priority); err != nil {
			return nil, fmt.Errorf("access: scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
