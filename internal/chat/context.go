package chat

import (
	"strings"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/session"
)

const conversationSeparator = "--------------------------------------------------------------------------------"

// promptContext is everything the oracle is told about the bot and the
// person before it answers.
type promptContext struct {
	Bot      []string
	Human    []string
	Recent   []session.Turn
	Requests []string
	Location *time.Location
}

// render lays the context out as a system prompt. Empty optional sections
// are omitted.
func (c promptContext) render() string {
	var b strings.Builder
	b.WriteString("You are a personal assistant chatting with one person.\n")

	b.WriteString("\n# Your characteristics\n")
	writeBullets(&b, c.Bot)

	if len(c.Human) > 0 {
		b.WriteString("\n# The person's characteristics\n")
		writeBullets(&b, c.Human)
	}

	if len(c.Recent) > 0 {
		b.WriteString("\n# Recent conversation\n")
		for _, turn := range c.Recent {
			b.WriteString(conversationSeparator)
			b.WriteByte('\n')
			b.WriteString("Time: ")
			b.WriteString(c.formatTime(turn.CreatedAt))
			b.WriteString("\nSpeaker: ")
			b.WriteString(speakerLabel(turn.Speaker))
			b.WriteString("\nContent: ")
			b.WriteString(turn.Content)
			b.WriteByte('\n')
		}
		b.WriteString(conversationSeparator)
		b.WriteByte('\n')
	}

	b.WriteString("\n# Requests\n")
	writeBullets(&b, c.Requests)
	return b.String()
}

func (c promptContext) formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "unknown"
	}
	if c.Location != nil {
		ts = ts.In(c.Location)
	}
	return ts.Format("2006-01-02 15:04")
}

func speakerLabel(s session.Speaker) string {
	if s == session.SpeakerBot {
		return "you"
	}
	return "the person"
}

func writeBullets(b *strings.Builder, items []string) {
	written := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteByte('\n')
		written++
	}
	if written == 0 {
		b.WriteString("- (none)\n")
	}
}
