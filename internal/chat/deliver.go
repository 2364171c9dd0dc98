package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neoclaw-ai/remindclaw/internal/identity"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/session"
	"github.com/neoclaw-ai/remindclaw/internal/trigger"
)

// ErrNoDeliveryTarget reports that an identity has no usable delivery target.
var ErrNoDeliveryTarget = errors.New("no delivery target")

// Fire asks the oracle for the trigger's request and sends the answer to the
// identity through its delivery target.
func (s *Service) Fire(ctx context.Context, ident *identity.Identity, t trigger.Trigger) error {
	target := strings.ToLower(strings.TrimSpace(ident.DeliveryTarget()))
	if target == "" {
		return fmt.Errorf("%w: identity %s", ErrNoDeliveryTarget, ident.ID())
	}
	sender, ok := s.senders[target]
	if !ok || sender == nil {
		return fmt.Errorf("%w: identity %s: unknown target %q", ErrNoDeliveryTarget, ident.ID(), target)
	}

	text, err := s.AskRequest(ctx, ident, t.Request)
	if err != nil {
		return fmt.Errorf("ask request for trigger %s: %w", t.ID, err)
	}
	if err := sender.Send(ctx, ident.ID(), text); err != nil {
		return fmt.Errorf("deliver trigger %s via %s: %w", t.ID, target, err)
	}

	if err := s.conversation(ident.ID()).Append(ctx, session.Turn{
		Speaker:   session.SpeakerBot,
		Content:   text,
		CreatedAt: s.now(),
	}); err != nil {
		logging.Logger().Warn("failed to log reminder", "identity_id", ident.ID(), "trigger_id", t.ID, "err", err)
	}
	logging.Logger().Info("trigger fired", "identity_id", ident.ID(), "trigger_id", t.ID, "target", target)
	return nil
}
