package schedule

import (
	"errors"
	"testing"
	"time"
)

var tokyo = time.FixedZone("JST", 9*60*60)

func TestResolveScenarios(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 1, 1, 9, 0, 20, 0, tokyo)
	tests := []struct {
		name     string
		date     string
		clock    string
		ref      time.Time
		expected string
		every    bool
	}{
		{name: "everyday literal", date: "everyday", clock: "23:00", ref: ref, expected: "everyday 23:00", every: true},
		{name: "today literal", date: "today", clock: "10:30", ref: ref, expected: "2025-01-01 10:30"},
		{name: "tomorrow single digit hour", date: "tomorrow", clock: "6:30", ref: ref, expected: "2025-01-02 06:30"},
		{name: "tomorrow now sentinel", date: "tomorrow", clock: "now", ref: ref, expected: "2025-01-02 09:00"},
		{name: "day after tomorrow relative", date: "day after tomorrow", clock: "now +60 mins", ref: ref, expected: "2025-01-03 10:00"},
		{name: "slash literal date", date: "2025/01/04", clock: "now", ref: ref, expected: "2025-01-04 09:00"},
		{name: "dash literal date", date: "2025-1-5", clock: "07:05", ref: ref, expected: "2025-01-05 07:05"},
		{name: "today relative", date: "today", clock: "now +60 mins", ref: time.Date(2025, 1, 3, 9, 0, 0, 0, tokyo), expected: "2025-01-03 10:00"},
		{name: "keyword casing and spacing", date: "  Day  After Tomorrow ", clock: " NOW + 5 minutes ", ref: ref, expected: "2025-01-03 09:05"},
		{name: "relative crosses midnight", date: "today", clock: "now +30 mins", ref: time.Date(2025, 1, 31, 23, 50, 0, 0, tokyo), expected: "2025-02-01 00:20"},
		{name: "everyday relative", date: "everyday", clock: "now +15 min", ref: ref, expected: "everyday 09:15", every: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(tt.date, tt.clock, tt.ref)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got.String() != tt.expected {
				t.Fatalf("expected %q, got %q", tt.expected, got.String())
			}
			if (got.Recurrence() == Everyday) != tt.every {
				t.Fatalf("unexpected recurrence %s", got.Recurrence())
			}
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 1, 3, 9, 0, 0, 0, tokyo)
	first, err := Resolve("today", "now +30 mins", ref)
	if err != nil {
		t.Fatalf("resolve first: %v", err)
	}
	second, err := Resolve("today", "now +30 mins", ref)
	if err != nil {
		t.Fatalf("resolve second: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical schedules, got %v and %v", first, second)
	}
}

func TestResolveBakesRelativeTime(t *testing.T) {
	t.Parallel()

	got, err := Resolve("today", "now +30 mins", time.Date(2025, 1, 3, 10, 0, 0, 0, tokyo))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	hour, minute := got.Clock()
	if hour != 10 || minute != 30 {
		t.Fatalf("expected 10:30, got %02d:%02d", hour, minute)
	}

	// Reading the schedule later must not move it.
	later := got.Instant(time.Date(2025, 1, 3, 11, 0, 0, 0, tokyo))
	if later.Hour() != 10 || later.Minute() != 30 {
		t.Fatalf("expected instant 10:30, got %s", later)
	}
}

func TestResolveEverydayHasNoDate(t *testing.T) {
	t.Parallel()

	got, err := Resolve("everyday", "08:30", time.Date(2025, 1, 3, 10, 0, 0, 0, tokyo))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, _, _, ok := got.Date(); ok {
		t.Fatalf("expected everyday schedule without a date")
	}
}

func TestResolveRejectsUnknownExpressions(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 1, 1, 9, 0, 0, 0, tokyo)
	tests := []struct {
		name  string
		date  string
		clock string
		field string
	}{
		{name: "unknown date keyword", date: "next week", clock: "10:00", field: "date"},
		{name: "impossible date", date: "2025/02/30", clock: "10:00", field: "date"},
		{name: "empty date", date: "", clock: "10:00", field: "date"},
		{name: "unknown time", date: "today", clock: "soon", field: "time"},
		{name: "hour out of range", date: "today", clock: "24:00", field: "time"},
		{name: "minute out of range", date: "today", clock: "10:60", field: "time"},
		{name: "relative hours unsupported", date: "today", clock: "now +2 hours", field: "time"},
		{name: "relative minutes beyond a year", date: "today", clock: "now +527041 mins", field: "time"},
		{name: "relative minutes overflow", date: "today", clock: "now +999999999999 mins", field: "time"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Resolve(tt.date, tt.clock, ref)
			if !errors.Is(err, ErrScheduleParse) {
				t.Fatalf("expected ErrScheduleParse, got %v", err)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if parseErr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, parseErr.Field)
			}
		})
	}
}

func TestParseStoredRoundTrip(t *testing.T) {
	t.Parallel()

	resolved, err := Resolve("tomorrow", "6:30", time.Date(2025, 1, 1, 9, 0, 0, 0, tokyo))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	parsed, err := ParseStored(resolved.StoredDate(), resolved.StoredTime())
	if err != nil {
		t.Fatalf("parse stored: %v", err)
	}
	if parsed != resolved {
		t.Fatalf("expected %v, got %v", resolved, parsed)
	}
}

func TestParseStoredRejectsUnresolvedForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		date  string
		clock string
	}{
		{date: "today", clock: "10:00"},
		{date: "everyday", clock: "now +30 mins"},
		{date: "2025-01-01", clock: "invalid-time"},
		{date: "2025/01/01", clock: "10:00"},
	}
	for _, tt := range tests {
		if _, err := ParseStored(tt.date, tt.clock); !errors.Is(err, ErrScheduleParse) {
			t.Fatalf("ParseStored(%q, %q): expected ErrScheduleParse, got %v", tt.date, tt.clock, err)
		}
	}
}

func TestInstantAnchorsEverydayToEvaluationDate(t *testing.T) {
	t.Parallel()

	s, err := ParseStored("everyday", "08:30")
	if err != nil {
		t.Fatalf("parse stored: %v", err)
	}
	on := time.Date(2025, 3, 9, 20, 15, 42, 0, tokyo)
	want := time.Date(2025, 3, 9, 8, 30, 0, 0, tokyo)
	if got := s.Instant(on); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
