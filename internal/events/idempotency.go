package events

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyStore persists processed event IDs so a redelivered task cannot
// record the same decision twice.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// CheckAndInsert claims the key, returning ErrDuplicateEvent when it was
// already claimed.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key string) error {
	if s == nil || s.pool == nil {
		return errors.New("events: idempotency store not initialised")
	}
	if key == "" {
		return errors.New("events: idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO processed_events (event_id, created_at) VALUES ($1, $2)`, key, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

// Release removes a claimed key, used to roll back failed processing so the
// task can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM processed_events WHERE event_id = $1`, key)
	return err
}

// Cleanup removes claims older than the retention window.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil || s.pool == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM processed_events WHERE created_at < $1`, cutoff)
	return err
}
