// Package commands provides channel-agnostic slash command handling.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"
	"github.com/neoclaw-ai/remindclaw/internal/chat"
	"github.com/neoclaw-ai/remindclaw/internal/runtime"
	"github.com/neoclaw-ai/remindclaw/internal/trigger"
)

const helpText = "Commands: /help, /commands, /triggers, /delete <trigger id>, /new, /reset"

// Triggers manages the triggers and conversation of one identity.
type Triggers interface {
	ListTriggers(ctx context.Context, identityID string) ([]trigger.Trigger, error)
	DeleteTrigger(ctx context.Context, identityID, triggerID string) (trigger.Trigger, bool, error)
	ResetConversation(ctx context.Context, identityID string) error
}

// Handler dispatches supported slash commands.
type Handler struct {
	triggers Triggers
}

// New creates a new slash command handler.
func New(triggers Triggers) *Handler {
	return &Handler{triggers: triggers}
}

// Handle executes one command and reports whether it was handled.
func (h *Handler) Handle(ctx context.Context, msg *runtime.Message, w runtime.ResponseWriter) (handled bool, err error) {
	if w == nil {
		return false, errors.New("response writer is required")
	}
	if msg == nil || !strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		return false, nil
	}

	args, err := shlex.Split(strings.TrimSpace(msg.Text))
	if err != nil {
		return true, w.WriteMessage(ctx, fmt.Sprintf("Could not parse command: %v", err))
	}
	if len(args) == 0 {
		return false, nil
	}

	switch normalize(args[0]) {
	case "/help", "/commands", "/start":
		return true, h.handleHelp(ctx, w)
	case "/new", "/reset":
		return true, h.handleReset(ctx, msg.SenderID, w)
	case "/triggers", "/list":
		return true, h.handleList(ctx, msg.SenderID, w)
	case "/delete", "/remove":
		return true, h.handleDelete(ctx, msg.SenderID, args[1:], w)
	default:
		return false, nil
	}
}

func (h *Handler) handleHelp(ctx context.Context, w runtime.ResponseWriter) error {
	return w.WriteMessage(ctx, chat.HelpText+"\n\n"+helpText)
}

func (h *Handler) handleReset(ctx context.Context, senderID string, w runtime.ResponseWriter) error {
	if h.triggers == nil {
		return errors.New("reset command is unavailable")
	}
	if err := h.triggers.ResetConversation(ctx, senderID); err != nil {
		return err
	}
	return w.WriteMessage(ctx, "Conversation cleared.")
}

func (h *Handler) handleList(ctx context.Context, senderID string, w runtime.ResponseWriter) error {
	if h.triggers == nil {
		return errors.New("triggers command is unavailable")
	}
	triggers, err := h.triggers.ListTriggers(ctx, senderID)
	if err != nil {
		return err
	}
	return w.WriteMessage(ctx, chat.FormatTriggers(triggers))
}

func (h *Handler) handleDelete(ctx context.Context, senderID string, args []string, w runtime.ResponseWriter) error {
	if h.triggers == nil {
		return errors.New("delete command is unavailable")
	}
	if len(args) != 1 {
		return w.WriteMessage(ctx, "Usage: /delete <trigger id>")
	}
	removed, ok, err := h.triggers.DeleteTrigger(ctx, senderID, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return w.WriteMessage(ctx, fmt.Sprintf("No trigger with id %s.", args[0]))
	}
	return w.WriteMessage(ctx, "Trigger removed: "+removed.String())
}

// Router dispatches slash commands before delegating to the next runtime.Handler.
type Router struct {
	Commands *Handler
	Next     runtime.Handler
}

// HandleMessage runs command dispatch first, then forwards non-command input.
func (r Router) HandleMessage(ctx context.Context, w runtime.ResponseWriter, msg *runtime.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if r.Next == nil {
		return errors.New("next handler is required")
	}
	if r.Commands != nil {
		handled, err := r.Commands.Handle(ctx, msg, w)
		if handled || err != nil {
			return err
		}
	}
	return r.Next.HandleMessage(ctx, w, msg)
}

func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	// Telegram appends the bot name in groups: /help@remind_bot.
	if at := strings.IndexByte(text, '@'); at > 0 {
		text = text[:at]
	}
	return text
}
