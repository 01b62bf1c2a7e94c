package holiday

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stubStore struct {
	entries []Entry
	err     error
	calls   int
}

func (s *stubStore) ListEntries(ctx context.Context) ([]Entry, error) {
	s.calls++
	return s.entries, s.err
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 10, 0, 0, 0, time.UTC)
}

func TestCalendarRefreshAndLookup(t *testing.T) {
	store := &stubStore{entries: []Entry{
		{Day: "2024-12-25", Slot: 1},
		{Day: "2024-12-25", Slot: 2},
		{Day: "2024-06-01", Slot: 3},
	}}
	cal := NewCalendar(store, nil, time.Hour, nil)

	if cal.IsHoliday(date(2024, 12, 25), 1) {
		t.Fatal("calendar should be empty before refresh")
	}
	if err := cal.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if !cal.IsHoliday(date(2024, 12, 25), 1) || !cal.IsHoliday(date(2024, 12, 25), 2) {
		t.Fatal("expected slots 1 and 2 on 2024-12-25")
	}
	if cal.IsHoliday(date(2024, 12, 25), 3) {
		t.Fatal("slot 3 should not be set on 2024-12-25")
	}
	if !cal.IsHoliday(date(2024, 6, 1), 3) {
		t.Fatal("expected slot 3 on 2024-06-01")
	}
	if cal.IsHoliday(date(2024, 6, 2), 3) {
		t.Fatal("unknown dates are never holidays")
	}
	if cal.IsHoliday(date(2024, 12, 25), 0) || cal.IsHoliday(date(2024, 12, 25), 4) {
		t.Fatal("out-of-range slots are never holidays")
	}
}

func TestCalendarUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &stubStore{entries: []Entry{{Day: "2025-01-01", Slot: 1}}}
	cal := NewCalendar(store, client, time.Hour, nil)

	if err := cal.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected one store read, got %d", store.calls)
	}

	// Second refresh is served from the cache.
	if err := cal.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected cache hit, store read %d times", store.calls)
	}
	if !cal.IsHoliday(date(2025, 1, 1), 1) {
		t.Fatal("expected holiday after cached refresh")
	}
}

func TestCalendarCorruptCacheFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Set("holiday:dates", "{not json")

	store := &stubStore{entries: []Entry{{Day: "2025-05-01", Slot: 2}}}
	cal := NewCalendar(store, client, time.Hour, nil)

	if err := cal.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected fallback store read, got %d", store.calls)
	}
	if !cal.IsHoliday(date(2025, 5, 1), 2) {
		t.Fatal("expected holiday from store fallback")
	}

	// Cache is repaired on the way through.
	raw, err := client.Get(context.Background(), "holiday:dates").Bytes()
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("cache still corrupt: %v", err)
	}
}

func TestCalendarFailedRefreshKeepsSnapshot(t *testing.T) {
	store := &stubStore{entries: []Entry{{Day: "2024-12-25", Slot: 1}}}
	cal := NewCalendar(store, nil, time.Hour, nil)
	if err := cal.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	store.err = errors.New("mirror offline")
	if err := cal.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if !cal.IsHoliday(date(2024, 12, 25), 1) {
		t.Fatal("previous snapshot should survive a failed refresh")
	}
}
