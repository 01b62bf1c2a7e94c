package holiday

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore reads the holiday_dates mirror table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// ListEntries returns every mirrored holiday date with its slot.
func (s *PGStore) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT day, slot FROM holiday_dates ORDER BY day, slot`)
	if err != nil {
		return nil, fmt.Errorf("holiday: list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			day  time.Time
			slot int
		)
		if err := rows.Scan(&day, &slot); err != nil {
			return nil, fmt.Errorf("holiday: list entries: %w", err)
		}
		entries = append(entries, Entry{Day: day.Format(dayLayout), Slot: slot})
	}
	return entries, rows.Err()
}
