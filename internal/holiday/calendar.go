// Package holiday resolves the three device holiday slots against a calendar
// mirrored into Postgres. The engine consumes it through the
// access.HolidayCalendar interface; lookups are in-memory so a decision never
// blocks on I/O.
package holiday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKey = "holiday:dates"
	dayLayout = "2006-01-02"
)

// Entry marks one calendar day as belonging to a holiday slot (1..3).
type Entry struct {
	Day  string `json:"day"` // YYYY-MM-DD
	Slot int    `json:"slot"`
}

// Store reads the mirrored holiday calendar.
type Store interface {
	ListEntries(ctx context.Context) ([]Entry, error)
}

// Calendar answers IsHoliday from a periodically refreshed snapshot. Refresh
// goes through a redis JSON cache before hitting the store; the worker's cron
// task keeps it warm.
type Calendar struct {
	store  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	slots map[string]uint8 // day -> slot bitmask
}

// NewCalendar constructs a Calendar. The redis client may be nil, in which
// case every refresh reads the store directly.
func NewCalendar(store Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Calendar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calendar{
		store:  store,
		client: client,
		ttl:    ttl,
		logger: logger,
		slots:  make(map[string]uint8),
	}
}

// IsHoliday reports whether the date falls on holiday slot n. Unknown dates
// and out-of-range slots are never holidays.
func (c *Calendar) IsHoliday(date time.Time, slot int) bool {
	if c == nil || slot < 1 || slot > 3 {
		return false
	}
	c.mu.RLock()
	mask := c.slots[date.Format(dayLayout)]
	c.mu.RUnlock()
	return mask&(1<<(slot-1)) != 0
}

// Refresh reloads the snapshot, preferring the redis cache and falling back
// to the store. A failed refresh keeps the previous snapshot in place.
func (c *Calendar) Refresh(ctx context.Context) error {
	entries, err := c.cachedEntries(ctx)
	if err != nil {
		return fmt.Errorf("holiday: refresh: %w", err)
	}
	slots := make(map[string]uint8, len(entries))
	for _, e := range entries {
		if e.Slot < 1 || e.Slot > 3 {
			continue
		}
		slots[e.Day] |= 1 << (e.Slot - 1)
	}
	c.mu.Lock()
	c.slots = slots
	c.mu.Unlock()
	return nil
}

func (c *Calendar) cachedEntries(ctx context.Context) ([]Entry, error) {
	if c.client == nil {
		return c.store.ListEntries(ctx)
	}

	raw, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var entries []Entry
		if err := json.Unmarshal(raw, &entries); err == nil {
			return entries, nil
		}
		c.logger.Warn("holiday cache corrupt, reloading", slog.String("key", cacheKey))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("holiday cache read failed", slog.Any("error", err))
	}

	entries, err := c.store.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entries); err == nil {
		if err := c.client.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
			c.logger.Warn("holiday cache write failed", slog.Any("error", err))
		}
	}
	return entries, nil
}
