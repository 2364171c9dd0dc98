// Package trigger defines scheduled reminders and decides when they are due.
package trigger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/schedule"
)

// EventTimer is the only trigger event kind: fire at a clock time.
const EventTimer = "timer"

// ErrCorruptTrigger reports stored trigger data that no longer parses.
var ErrCorruptTrigger = errors.New("corrupt trigger data")

// Trigger is one scheduled reminder owned by a bot identity. Date and Time
// hold the schedule in storage form (see schedule.ParseStored) so that a
// trigger loaded from disk keeps its raw values even when they are corrupt.
type Trigger struct {
	// ID is assigned by the owning identity when the trigger is added.
	ID      string `json:"id,omitempty"`
	Event   string `json:"event"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Request string `json:"request"`
}

// New builds an unsaved timer trigger from a resolved schedule.
func New(s schedule.Schedule, request string) Trigger {
	return Trigger{
		Event:   EventTimer,
		Date:    s.StoredDate(),
		Time:    s.StoredTime(),
		Request: request,
	}
}

// Schedule parses the stored schedule.
func (t Trigger) Schedule() (schedule.Schedule, error) {
	s, err := schedule.ParseStored(t.Date, t.Time)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("%w: trigger %s: %w", ErrCorruptTrigger, t.ID, err)
	}
	return s, nil
}

// OneTime reports whether the trigger fires only once and must be removed
// after firing.
func (t Trigger) OneTime() bool {
	return !strings.EqualFold(strings.TrimSpace(t.Date), schedule.StoredEveryday)
}

// Due reports whether the trigger falls inside the half-open window
// [scheduled, scheduled+windowMinutes) at now. Both sides are truncated to
// the minute; now must be in the reference time zone. Corrupt stored data
// yields false with an error wrapping ErrCorruptTrigger.
func (t Trigger) Due(windowMinutes int, now time.Time) (bool, error) {
	if windowMinutes <= 0 {
		return false, fmt.Errorf("window minutes must be positive, got %d", windowMinutes)
	}
	s, err := t.Schedule()
	if err != nil {
		return false, err
	}

	current := truncateMinute(now)
	scheduled := s.Instant(current)
	diff := int(current.Sub(scheduled) / time.Minute)
	return diff >= 0 && diff < windowMinutes, nil
}

// ShouldRunNow is Due without the diagnostic error: a corrupt trigger is
// simply never due.
func (t Trigger) ShouldRunNow(windowMinutes int, now time.Time) bool {
	due, err := t.Due(windowMinutes, now)
	return err == nil && due
}

func (t Trigger) String() string {
	return t.Date + " " + t.Time + ": " + t.Request
}

func truncateMinute(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, ts.Hour(), ts.Minute(), 0, 0, ts.Location())
}
