package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portcullis-acs/portcullis/internal/access"
)

// PGRepository stores decision records in the access_decisions table.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert persists one decision record.
func (r *PGRepository) Insert(ctx context.Context, rec DecisionRecord) (int64, error) {
	trace, err := json.Marshal(rec.Trace)
	if err != nil {
		return 0, fmt.Errorf("audit: marshal trace: %w", err)
	}
	const query = `
		INSERT INTO access_decisions
			(event_id, user_id, portal_id, device_id, at,
			 granted, reason, matched_rule_id, device_rule_id, diverged, trace, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING id`
	var id int64
	err = r.pool.QueryRow(ctx, query,
		rec.EventID, rec.UserID, rec.PortalID, rec.DeviceID, rec.At,
		rec.Granted, string(rec.Reason), rec.MatchedRuleID, rec.DeviceRuleID, rec.Diverged, trace,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("audit: insert decision: %w", err)
	}
	return id, nil
}

// Window fetches a page of decision records, newest first.
func (r *PGRepository) Window(ctx context.Context, filters Filters, limit, offset int) ([]DecisionRecord, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if filters.UserID > 0 {
		add("user_id = ", filters.UserID)
	}
	if filters.PortalID > 0 {
		add("portal_id = ", filters.PortalID)
	}
	if filters.Granted != nil {
		add("granted = ", *filters.Granted)
	}
	if filters.Diverged != nil {
		add("diverged = ", *filters.Diverged)
	}
	if !filters.From.IsZero() {
		add("at >= ", filters.From)
	}
	if !filters.To.IsZero() {
		add("at <= ", filters.To)
	}

	query := `
		SELECT id, event_id, user_id, portal_id, device_id, at,
		       granted, reason, matched_rule_id, device_rule_id, diverged, trace, created_at
		FROM access_decisions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += " ORDER BY at DESC, id DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: window: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		var (
			rec         DecisionRecord
			reason      string
			matchedRule pgtype.Int8
			deviceRule  pgtype.Int8
			trace       []byte
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.UserID, &rec.PortalID, &rec.DeviceID, &rec.At,
			&rec.Granted, &reason, &matchedRule, &deviceRule, &rec.Diverged, &trace, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan decision: %w", err)
		}
		rec.Reason = access.Reason(reason)
		if matchedRule.Valid {
			v := matchedRule.Int64
			rec.MatchedRuleID = &v
		}
		if deviceRule.Valid {
			v := deviceRule.Int64
			rec.DeviceRuleID = &v
		}
		if len(trace) > 0 {
			if err := json.Unmarshal(trace, &rec.Trace); err != nil {
				return nil, fmt.Errorf("audit: decode trace: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes records created before the cutoff.
func (r *PGRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_decisions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: delete older than: %w", err)
	}
	return tag.RowsAffected(), nil
}
