package chat

import (
	"context"
	"fmt"

	"github.com/neoclaw-ai/remindclaw/internal/identity"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/provider"
	"github.com/neoclaw-ai/remindclaw/internal/session"
)

// Answer replies conversationally to message using the identity's
// characteristics, recent conversation and requests as context.
func (s *Service) Answer(ctx context.Context, ident *identity.Identity, message string) (string, error) {
	recent, err := s.conversation(ident.ID()).Recent(ctx, s.recent)
	if err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}
	pc := promptContext{
		Bot:      ident.BotCharacteristics(),
		Human:    ident.HumanCharacteristics(),
		Recent:   recent,
		Requests: ident.Requests(s.usePersonal, s.useDefault),
		Location: s.loc,
	}
	return provider.Complete(ctx, s.oracle, pc.render(), message)
}

// AskRequest produces the text for a fired trigger. The request is sent to
// the oracle as if the person had just asked it, with the recent
// conversation and requests as context but no human characteristics.
func (s *Service) AskRequest(ctx context.Context, ident *identity.Identity, request string) (string, error) {
	recent, err := s.conversation(ident.ID()).Recent(ctx, s.recent)
	if err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}
	pc := promptContext{
		Bot:      ident.BotCharacteristics(),
		Recent:   recent,
		Requests: ident.Requests(s.usePersonal, s.useDefault),
		Location: s.loc,
	}
	return provider.Complete(ctx, s.oracle, pc.render(), request)
}

// ResetConversation clears the identity's conversation log.
func (s *Service) ResetConversation(ctx context.Context, identityID string) error {
	ident, err := s.Identity(ctx, identityID)
	if err != nil {
		return err
	}
	return s.conversation(ident.ID()).Reset(ctx)
}

func (s *Service) answerAndLog(ctx context.Context, ident *identity.Identity, message string) (string, error) {
	at := s.now()
	answer, err := s.Answer(ctx, ident, message)
	if err != nil {
		return "", err
	}
	turns := []session.Turn{
		{Speaker: session.SpeakerHuman, Content: message, CreatedAt: at},
		{Speaker: session.SpeakerBot, Content: answer, CreatedAt: s.now()},
	}
	if err := s.conversation(ident.ID()).Append(ctx, turns...); err != nil {
		// The answer is still worth delivering.
		logging.Logger().Warn("failed to log conversation", "identity_id", ident.ID(), "err", err)
	}
	return answer, nil
}
