package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date keywords understood by Resolve.
const (
	KeywordEveryday         = "everyday"
	KeywordToday            = "today"
	KeywordTomorrow         = "tomorrow"
	KeywordDayAfterTomorrow = "day after tomorrow"

	// KeywordNow is the time expression meaning "at resolution time".
	KeywordNow = "now"

	// MaxRelativeMinutes bounds N in "now +N mins" to one leap year.
	MaxRelativeMinutes = 366 * 24 * 60
)

var (
	literalDatePattern   = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`)
	literalClockPattern  = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	relativeClockPattern = regexp.MustCompile(`^now(?:\s*\+\s*(\d+)\s*(?:mins?|minutes?))?$`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// Resolve builds a schedule from a date expression and a time expression,
// relative to referenceNow. referenceNow must already be in the reference
// time zone; its calendar date anchors "today", "tomorrow" and
// "day after tomorrow".
//
// Relative times ("now +N mins") are evaluated once here and stored as an
// absolute clock time. When such a time crosses midnight on a one-time
// schedule, the date moves forward by the days crossed.
func Resolve(dateExpr, timeExpr string, referenceNow time.Time) (Schedule, error) {
	hour, minute, dayCarry, err := resolveClock(timeExpr, referenceNow)
	if err != nil {
		return Schedule{}, err
	}

	date := normalizeExpr(dateExpr)
	var offset int
	switch date {
	case KeywordEveryday:
		return Schedule{recurrence: Everyday, hour: hour, minute: minute}, nil
	case KeywordToday:
		offset = 0
	case KeywordTomorrow:
		offset = 1
	case KeywordDayAfterTomorrow:
		offset = 2
	default:
		y, m, d, err := parseLiteralDate(date)
		if err != nil {
			return Schedule{}, &ParseError{Field: "date", Input: dateExpr}
		}
		return oneTime(time.Date(y, m, d+dayCarry, 0, 0, 0, 0, time.UTC), hour, minute), nil
	}

	y, m, d := referenceNow.Date()
	return oneTime(time.Date(y, m, d+offset+dayCarry, 0, 0, 0, 0, time.UTC), hour, minute), nil
}

func oneTime(day time.Time, hour, minute int) Schedule {
	y, m, d := day.Date()
	return Schedule{recurrence: OneTime, year: y, month: m, day: d, hour: hour, minute: minute}
}

// resolveClock returns the clock time for timeExpr and how many calendar days
// a relative expression moved past referenceNow's date.
func resolveClock(timeExpr string, referenceNow time.Time) (hour, minute, dayCarry int, err error) {
	expr := normalizeExpr(timeExpr)

	if match := literalClockPattern.FindStringSubmatch(expr); match != nil {
		hour, _ = strconv.Atoi(match[1])
		minute, _ = strconv.Atoi(match[2])
		if hour > 23 || minute > 59 {
			return 0, 0, 0, &ParseError{Field: "time", Input: timeExpr}
		}
		return hour, minute, 0, nil
	}

	if match := relativeClockPattern.FindStringSubmatch(expr); match != nil {
		mins := 0
		if match[1] != "" {
			mins, err = strconv.Atoi(match[1])
			if err != nil || mins > MaxRelativeMinutes {
				return 0, 0, 0, &ParseError{Field: "time", Input: timeExpr}
			}
		}
		target := referenceNow.Add(time.Duration(mins) * time.Minute)
		return target.Hour(), target.Minute(), daysBetween(referenceNow, target), nil
	}

	return 0, 0, 0, &ParseError{Field: "time", Input: timeExpr}
}

func parseLiteralDate(expr string) (int, time.Month, int, error) {
	match := literalDatePattern.FindStringSubmatch(expr)
	if match == nil {
		return 0, 0, 0, ErrScheduleParse
	}
	y, _ := strconv.Atoi(match[1])
	m, _ := strconv.Atoi(match[2])
	d, _ := strconv.Atoi(match[3])

	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject anything it moved.
	probe := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if probe.Year() != y || int(probe.Month()) != m || probe.Day() != d {
		return 0, 0, 0, ErrScheduleParse
	}
	return y, time.Month(m), d, nil
}

func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

func normalizeExpr(expr string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(expr)), " ")
}
