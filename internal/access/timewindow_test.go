package access

import (
	"testing"
	"time"
)

// 2024-03-12 is a Tuesday, 2024-03-13 a Wednesday.
func tuesday(hour, min, sec int) time.Time {
	return time.Date(2024, 3, 12, hour, min, sec, 0, time.UTC)
}

func wednesday(hour, min, sec int) time.Time {
	return time.Date(2024, 3, 13, hour, min, sec, 0, time.UTC)
}

func TestMatchSpansWeekdayGating(t *testing.T) {
	spans := []TimeSpan{{Start: 32400, End: 61200, Tue: true}} // 09:00-17:00

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"tuesday start boundary", tuesday(9, 0, 0), true},
		{"tuesday inside", tuesday(10, 0, 0), true},
		{"tuesday end boundary", tuesday(17, 0, 0), true},
		{"tuesday one second early", tuesday(8, 59, 59), false},
		{"tuesday one second late", tuesday(17, 0, 1), false},
		{"wednesday inside window", wednesday(10, 0, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := MatchSpans(spans, tc.at, nil)
			if ok != tc.want {
				t.Fatalf("MatchSpans(%s) = %v, want %v", tc.at, ok, tc.want)
			}
		})
	}
}

func TestMatchSpansFirstMatchWins(t *testing.T) {
	spans := []TimeSpan{
		{Start: 0, End: 86399, Tue: true},
		{Start: 32400, End: 61200, Tue: true},
	}
	m, ok := MatchSpans(spans, tuesday(10, 0, 0), nil)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.SpanIdx != 0 {
		t.Fatalf("expected first span to win, got index %d", m.SpanIdx)
	}
}

type stubCalendar struct {
	slots map[int]bool
}

func (c stubCalendar) IsHoliday(date time.Time, slot int) bool {
	return c.slots[slot]
}

func TestMatchSpansHolidayOnlySpan(t *testing.T) {
	spans := []TimeSpan{{Start: 0, End: 86399, Hol1: true}}

	// Without a calendar the holiday dimension is disabled.
	if _, ok := MatchSpans(spans, tuesday(10, 0, 0), nil); ok {
		t.Fatal("holiday-only span matched without a calendar")
	}

	// Calendar says today is not holiday 1.
	if _, ok := MatchSpans(spans, tuesday(10, 0, 0), stubCalendar{slots: map[int]bool{}}); ok {
		t.Fatal("holiday-only span matched on a non-holiday")
	}

	// Calendar confirms holiday 1.
	if _, ok := MatchSpans(spans, tuesday(10, 0, 0), stubCalendar{slots: map[int]bool{1: true}}); !ok {
		t.Fatal("holiday-only span did not match on a confirmed holiday")
	}
}

func TestMatchSpansWeekdayFlagIndependentOfCalendar(t *testing.T) {
	spans := []TimeSpan{{Start: 0, End: 86399, Tue: true}}
	if _, ok := MatchSpans(spans, tuesday(10, 0, 0), stubCalendar{slots: map[int]bool{2: true}}); !ok {
		t.Fatal("weekday flag should match regardless of holiday slots")
	}
}

func TestMatchZonesFirstZoneWins(t *testing.T) {
	zones := []TimeZone{
		{ID: 1, Name: "closed", Spans: []TimeSpan{{Start: 0, End: 3600, Tue: true}}},
		{ID: 2, Name: "open", Spans: []TimeSpan{{Start: 0, End: 86399, Tue: true}}},
	}
	m, ok := MatchZones(zones, tuesday(10, 0, 0), nil)
	if !ok {
		t.Fatal("expected a zone match")
	}
	if m.Zone.ID != 2 {
		t.Fatalf("expected zone 2, got %d", m.Zone.ID)
	}
}

func TestWeekdayConversion(t *testing.T) {
	if got := weekday(tuesday(0, 0, 0)); got != 1 {
		t.Fatalf("tuesday should be dow 1, got %d", got)
	}
	sunday := time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)
	if got := weekday(sunday); got != 6 {
		t.Fatalf("sunday should be dow 6, got %d", got)
	}
}
