package command

import (
	"regexp"
	"strings"

	"github.com/neoclaw-ai/remindclaw/internal/schedule"
)

// Defaults used when the oracle's answer lacks a labelled line.
const (
	DefaultDate    = schedule.KeywordToday
	DefaultTime    = schedule.KeywordNow
	DefaultRequest = "Could not parse request"
)

// Fields are the raw schedule expressions and request text split out of an
// oracle answer. Date and Time are still unresolved keywords.
type Fields struct {
	Date    string
	Time    string
	Request string
}

// Each label may be preceded by a bullet and followed by a full-width or
// ASCII colon. Only the first matching line counts.
var (
	dateLine    = labelPattern(`日付|date`)
	timeLine    = labelPattern(`時刻|time`)
	requestLine = labelPattern(`依頼内容|request`)
)

func labelPattern(labels string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*(?:[・\-*][ \t]*)?(?:` + labels + `)[ \t]*[：:][ \t]*(.*)$`)
}

// ExtractOneTime splits an oracle answer for a one-time trigger. It never
// fails: a missing date becomes "today", a missing time "now", and a missing
// request a visible placeholder.
func ExtractOneTime(oracleText string) Fields {
	return extract(oracleText)
}

// ExtractDaily splits an oracle answer for a daily trigger with the same
// defaults as ExtractOneTime. The daily prompt asks the oracle for an
// "everyday" date; a missing one still falls back to "today".
func ExtractDaily(oracleText string) Fields {
	return extract(oracleText)
}

func extract(text string) Fields {
	return Fields{
		Date:    firstValue(dateLine, text, DefaultDate),
		Time:    firstValue(timeLine, text, DefaultTime),
		Request: firstValue(requestLine, text, DefaultRequest),
	}
}

func firstValue(re *regexp.Regexp, text, fallback string) string {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if value := strings.TrimSpace(m[1]); value != "" {
			return value
		}
	}
	return fallback
}
