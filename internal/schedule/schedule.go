// Package schedule turns free-form date and time expressions into immutable
// trigger schedules.
//
// A Schedule carries a wall-clock time and either a fixed calendar date or an
// everyday recurrence. It holds no time zone: dates and clock times are
// interpreted in whatever reference zone the caller evaluates them in, so the
// caller must convert every timestamp into that zone first.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Recurrence distinguishes fixed-date schedules from daily ones.
type Recurrence int

const (
	// OneTime fires once on a fixed calendar date.
	OneTime Recurrence = iota + 1
	// Everyday fires every day at the same clock time.
	Everyday
)

func (r Recurrence) String() string {
	switch r {
	case OneTime:
		return "one_time"
	case Everyday:
		return "everyday"
	default:
		return "unknown"
	}
}

const (
	// StoredEveryday is the storage form of the Everyday recurrence.
	StoredEveryday = "everyday"

	storedDateLayout = "2006-01-02"
	storedTimeLayout = "15:04"
)

// ErrScheduleParse reports a date or time expression outside the accepted
// vocabulary.
var ErrScheduleParse = errors.New("unrecognized schedule expression")

// ParseError describes which expression failed to parse.
type ParseError struct {
	Field string
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s expression %q: %v", e.Field, e.Input, ErrScheduleParse)
}

func (e *ParseError) Unwrap() error {
	return ErrScheduleParse
}

// Schedule is an immutable resolved schedule. The zero value is not valid;
// build one with Resolve or ParseStored. Schedules are comparable with ==.
type Schedule struct {
	recurrence Recurrence
	year       int
	month      time.Month
	day        int
	hour       int
	minute     int
}

// Recurrence reports whether the schedule is one-time or everyday.
func (s Schedule) Recurrence() Recurrence {
	return s.recurrence
}

// Date returns the fixed calendar date. ok is false for everyday schedules.
func (s Schedule) Date() (year int, month time.Month, day int, ok bool) {
	if s.recurrence != OneTime {
		return 0, 0, 0, false
	}
	return s.year, s.month, s.day, true
}

// Clock returns the resolved clock time.
func (s Schedule) Clock() (hour, minute int) {
	return s.hour, s.minute
}

// IsZero reports whether s was never resolved.
func (s Schedule) IsZero() bool {
	return s.recurrence == 0
}

// Instant returns the scheduled instant relevant to on, in on's location.
// Everyday schedules are anchored to on's calendar date. Seconds are zero.
func (s Schedule) Instant(on time.Time) time.Time {
	loc := on.Location()
	if s.recurrence == Everyday {
		y, m, d := on.Date()
		return time.Date(y, m, d, s.hour, s.minute, 0, 0, loc)
	}
	return time.Date(s.year, s.month, s.day, s.hour, s.minute, 0, 0, loc)
}

// StoredDate renders the date in storage form: "everyday" or YYYY-MM-DD.
func (s Schedule) StoredDate() string {
	if s.recurrence == Everyday {
		return StoredEveryday
	}
	return time.Date(s.year, s.month, s.day, 0, 0, 0, 0, time.UTC).Format(storedDateLayout)
}

// StoredTime renders the clock time as HH:MM.
func (s Schedule) StoredTime() string {
	return fmt.Sprintf("%02d:%02d", s.hour, s.minute)
}

func (s Schedule) String() string {
	return s.StoredDate() + " " + s.StoredTime()
}

// ParseStored rebuilds a schedule from its storage form. Only the normalized
// forms written by StoredDate and StoredTime are accepted; keywords such as
// "today" or relative times are rejected because they would be re-evaluated.
func ParseStored(date, clock string) (Schedule, error) {
	hour, minute, err := parseStoredClock(clock)
	if err != nil {
		return Schedule{}, err
	}

	trimmed := strings.TrimSpace(date)
	if strings.EqualFold(trimmed, StoredEveryday) {
		return Schedule{recurrence: Everyday, hour: hour, minute: minute}, nil
	}

	parsed, err := time.Parse(storedDateLayout, trimmed)
	if err != nil {
		return Schedule{}, &ParseError{Field: "stored date", Input: date}
	}
	y, m, d := parsed.Date()
	return Schedule{recurrence: OneTime, year: y, month: m, day: d, hour: hour, minute: minute}, nil
}

func parseStoredClock(clock string) (int, int, error) {
	parsed, err := time.Parse(storedTimeLayout, strings.TrimSpace(clock))
	if err != nil {
		return 0, 0, &ParseError{Field: "stored time", Input: clock}
	}
	return parsed.Hour(), parsed.Minute(), nil
}
