package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/neoclaw-ai/remindclaw/internal/command"
	"github.com/neoclaw-ai/remindclaw/internal/identity"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/schedule"
	"github.com/neoclaw-ai/remindclaw/internal/trigger"
)

// HelpText is the reply to a help request.
const HelpText = `I can remind you of things and chat with you.
- One-time reminders: "Tell me the weather tomorrow at 6:30", "Remind me in 30 minutes that the food is ready"
- Daily reminders: "Send me a good morning message every day at 7"
- Stop a reminder: "Stop the good morning message" lists your reminders; reply with the id to remove one
- Commands: /triggers, /delete <id>, /reset, /help`

var triggerIDPattern = regexp.MustCompile(`trigger_[0-9A-Za-z-]+`)

type splitFunc func(ctx context.Context, message string) (command.Fields, error)

func (s *Service) addTrigger(ctx context.Context, ident *identity.Identity, text string, split splitFunc) (string, error) {
	fields, err := split(ctx, text)
	if err != nil {
		return "", err
	}

	t, err := s.AddTrigger(ctx, ident, fields)
	if errors.Is(err, schedule.ErrScheduleParse) {
		logging.Logger().Info("trigger rejected", "identity_id", ident.ID(), "date", fields.Date, "time", fields.Time, "err", err)
		return fmt.Sprintf("Sorry, I could not work out when to remind you (date %q, time %q). Nothing was scheduled.", fields.Date, fields.Time), nil
	}
	if err != nil {
		return "", err
	}
	return "Trigger added: " + t.String(), nil
}

// AddTrigger resolves fields against the current reference time, stores the
// new trigger on ident and saves it. Unresolvable expressions return an
// error wrapping schedule.ErrScheduleParse and nothing is stored.
func (s *Service) AddTrigger(ctx context.Context, ident *identity.Identity, fields command.Fields) (trigger.Trigger, error) {
	sched, err := schedule.Resolve(fields.Date, fields.Time, s.referenceNow())
	if err != nil {
		return trigger.Trigger{}, err
	}
	t := trigger.New(sched, fields.Request)
	t.ID = ident.AddTrigger(t)
	if err := s.store.Save(ctx, ident); err != nil {
		ident.DeleteTrigger(t.ID)
		return trigger.Trigger{}, fmt.Errorf("save identity %s: %w", ident.ID(), err)
	}
	logging.Logger().Info("trigger added", "identity_id", ident.ID(), "trigger_id", t.ID, "schedule", sched.String())
	return t, nil
}

func (s *Service) removeTrigger(ctx context.Context, ident *identity.Identity, text string) (string, error) {
	id := triggerIDPattern.FindString(text)
	if id == "" {
		return listReply(ident.Triggers(), "Send me the id of the trigger to remove."), nil
	}
	removed, ok, err := s.deleteTrigger(ctx, ident, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("No trigger with id %s.", id), nil
	}
	return "Trigger removed: " + removed.String(), nil
}

// ListTriggers returns the identity's own triggers ordered by id.
func (s *Service) ListTriggers(ctx context.Context, identityID string) ([]trigger.Trigger, error) {
	ident, err := s.Identity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return ident.Triggers(), nil
}

// DeleteTrigger removes one trigger and reports whether it existed.
func (s *Service) DeleteTrigger(ctx context.Context, identityID, triggerID string) (trigger.Trigger, bool, error) {
	ident, err := s.Identity(ctx, identityID)
	if err != nil {
		return trigger.Trigger{}, false, err
	}
	return s.deleteTrigger(ctx, ident, triggerID)
}

func (s *Service) deleteTrigger(ctx context.Context, ident *identity.Identity, triggerID string) (trigger.Trigger, bool, error) {
	t, ok := ident.Trigger(triggerID)
	if !ok {
		return trigger.Trigger{}, false, nil
	}
	ident.DeleteTrigger(t.ID)
	if err := s.store.Save(ctx, ident); err != nil {
		return trigger.Trigger{}, false, fmt.Errorf("save identity %s: %w", ident.ID(), err)
	}
	logging.Logger().Info("trigger removed", "identity_id", ident.ID(), "trigger_id", t.ID)
	return t, true, nil
}

// FormatTriggers renders triggers one per line with their ids.
func FormatTriggers(triggers []trigger.Trigger) string {
	if len(triggers) == 0 {
		return "You have no triggers."
	}
	var b strings.Builder
	b.WriteString("Your triggers:")
	for _, t := range triggers {
		fmt.Fprintf(&b, "\n- %s\n  id: %s", t.String(), t.ID)
	}
	return b.String()
}

func listReply(triggers []trigger.Trigger, hint string) string {
	if len(triggers) == 0 {
		return FormatTriggers(triggers)
	}
	return FormatTriggers(triggers) + "\n" + hint
}
