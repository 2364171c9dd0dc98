// Package command classifies inbound chat messages into bot commands and
// splits scheduling requests into raw date, time and request fields using
// the language model oracle.
package command

import (
	"strings"
	"unicode"
)

// Command is the closed set of actions an inbound message can ask for.
type Command int

const (
	// Other is any message that is not a recognized command; it is answered
	// conversationally.
	Other Command = iota
	// AddOneTimeTrigger schedules a reminder on one date.
	AddOneTimeTrigger
	// AddDailyTrigger schedules a reminder every day.
	AddDailyTrigger
	// RemoveTrigger cancels a reminder.
	RemoveTrigger
	// ShowHelp explains what the bot can do.
	ShowHelp
)

// Oracle answer codes. Codes 1 and 2 (answer style and persona changes) and
// 9 (anything else) all fall through to Other.
var codes = map[string]Command{
	"3": AddOneTimeTrigger,
	"4": AddDailyTrigger,
	"5": RemoveTrigger,
	"8": ShowHelp,
}

func (c Command) String() string {
	switch c {
	case AddOneTimeTrigger:
		return "add_one_time_trigger"
	case AddDailyTrigger:
		return "add_daily_trigger"
	case RemoveTrigger:
		return "remove_trigger"
	case ShowHelp:
		return "show_help"
	default:
		return "other"
	}
}

// ParseCommand maps an oracle classification answer to a Command. Unknown or
// malformed answers are Other, never an error.
func ParseCommand(answer string) Command {
	code := strings.Map(normalizeDigit, strings.TrimSpace(answer))
	if cmd, ok := codes[code]; ok {
		return cmd
	}
	return Other
}

// normalizeDigit folds full-width digits to ASCII.
func normalizeDigit(r rune) rune {
	if r >= '０' && r <= '９' {
		return '0' + (r - '０')
	}
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}
