package access

import "time"

// HolidayCalendar answers whether a date falls on one of the three device
// holiday slots. Implementations must be side-effect free per call; the engine
// treats a nil calendar as "no holiday information", which disables the
// holiday dimension entirely.
type HolidayCalendar interface {
	IsHoliday(date time.Time, slot int) bool
}

// SpanMatch identifies the first matching span inside a zone.
type SpanMatch struct {
	SpanIdx int
	Span    TimeSpan
}

// weekday converts time.Weekday to the device convention, Monday = 0.
func weekday(at time.Time) int {
	return (int(at.Weekday()) + 6) % 7
}

// secondsOfDay returns the seconds elapsed since local midnight.
func secondsOfDay(at time.Time) int {
	return at.Hour()*3600 + at.Minute()*60 + at.Second()
}

// MatchSpans returns the first span in collection order that covers the given
// instant, or false when none does. A span covers an instant when its time
// window contains the instant's second-of-day (inclusive on both ends) and the
// day is enabled either by the weekday flag or, when a calendar is supplied,
// by a holiday flag whose slot the calendar confirms for the date. Without a
// calendar only weekday flags are evaluated, so holiday-only spans never match.
func MatchSpans(spans []TimeSpan, at time.Time, cal HolidayCalendar) (SpanMatch, bool) {
	dow := weekday(at)
	sod := secondsOfDay(at)
	for i, span := range spans {
		if sod < span.Start || sod > span.End {
			continue
		}
		if span.Day(dow) {
			return SpanMatch{SpanIdx: i, Span: span}, true
		}
		if cal == nil {
			continue
		}
		for slot := 1; slot <= 3; slot++ {
			if span.Holiday(slot) && cal.IsHoliday(at, slot) {
				return SpanMatch{SpanIdx: i, Span: span}, true
			}
		}
	}
	return SpanMatch{}, false
}

// ZoneMatch identifies the zone and span that activated a rule.
type ZoneMatch struct {
	Zone    TimeZone
	SpanIdx int
}

// MatchZones evaluates a rule's zones in collection order and returns the
// first zone with a covering span. First match wins; there is no intra-zone
// priority.
func MatchZones(zones []TimeZone, at time.Time, cal HolidayCalendar) (ZoneMatch, bool) {
	for _, zone := range zones {
		if m, ok := MatchSpans(zone.Spans, at, cal); ok {
			return ZoneMatch{Zone: zone, SpanIdx: m.SpanIdx}, true
		}
	}
	return ZoneMatch{}, false
}
