// Package chat is the bot's application service: it classifies inbound
// messages, manages an identity's triggers, answers conversationally, and
// delivers fired reminders.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/command"
	"github.com/neoclaw-ai/remindclaw/internal/identity"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/provider"
	"github.com/neoclaw-ai/remindclaw/internal/runtime"
	"github.com/neoclaw-ai/remindclaw/internal/session"
)

// Classifier turns messages into commands and scheduling fields.
type Classifier interface {
	Classify(ctx context.Context, message string) (command.Command, error)
	OneTimeTrigger(ctx context.Context, message string) (command.Fields, error)
	DailyTrigger(ctx context.Context, message string) (command.Fields, error)
}

// Options wires a Service.
type Options struct {
	Store      identity.Store
	Classifier Classifier
	Oracle     provider.Provider
	// ConversationPath maps an identity id to its JSONL conversation log.
	ConversationPath func(identityID string) string
	// Senders maps delivery targets ("telegram", "cli") to transports.
	Senders  map[string]runtime.Sender
	Location *time.Location
	// RecentMessages is how many logged turns go into the answer context.
	RecentMessages      int
	UsePersonalRequests bool
	UseDefaultRequests  bool
	Now                 func() time.Time
}

// Service handles chat traffic for every identity.
type Service struct {
	store            identity.Store
	classifier       Classifier
	oracle           provider.Provider
	conversationPath func(string) string
	senders          map[string]runtime.Sender
	loc              *time.Location
	recent           int
	usePersonal      bool
	useDefault       bool
	now              func() time.Time
}

var _ runtime.Handler = (*Service)(nil)

// New validates opts and builds a Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("identity store is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if opts.Oracle == nil {
		return nil, errors.New("oracle is required")
	}
	if opts.ConversationPath == nil {
		return nil, errors.New("conversation path func is required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	senders := make(map[string]runtime.Sender, len(opts.Senders))
	for name, sender := range opts.Senders {
		senders[strings.ToLower(strings.TrimSpace(name))] = sender
	}
	return &Service{
		store:            opts.Store,
		classifier:       opts.Classifier,
		oracle:           opts.Oracle,
		conversationPath: opts.ConversationPath,
		senders:          senders,
		loc:              loc,
		recent:           opts.RecentMessages,
		usePersonal:      opts.UsePersonalRequests,
		useDefault:       opts.UseDefaultRequests,
		now:              now,
	}, nil
}

// RegisterSender adds or replaces the transport for a delivery target. It
// must be called before the service starts handling traffic.
func (s *Service) RegisterSender(target string, sender runtime.Sender) {
	s.senders[strings.ToLower(strings.TrimSpace(target))] = sender
}

// HandleMessage implements runtime.Handler.
func (s *Service) HandleMessage(ctx context.Context, w runtime.ResponseWriter, msg *runtime.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	ident, created, err := s.loadIdentity(ctx, msg.SenderID)
	if err != nil {
		return err
	}
	if changed := rememberChannel(ident, msg.Channel); changed || created {
		if err := s.store.Save(ctx, ident); err != nil {
			return fmt.Errorf("save identity %s: %w", ident.ID(), err)
		}
	}

	cmd, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return err
	}
	logging.Logger().Info("chat command", "identity_id", ident.ID(), "channel", msg.Channel, "command", cmd.String())

	var reply string
	switch cmd {
	case command.AddOneTimeTrigger:
		reply, err = s.addTrigger(ctx, ident, text, s.classifier.OneTimeTrigger)
	case command.AddDailyTrigger:
		reply, err = s.addTrigger(ctx, ident, text, s.classifier.DailyTrigger)
	case command.RemoveTrigger:
		reply, err = s.removeTrigger(ctx, ident, text)
	case command.ShowHelp:
		reply = HelpText
	default:
		reply, err = s.answerAndLog(ctx, ident, text)
	}
	if err != nil {
		return err
	}
	return w.WriteMessage(ctx, reply)
}

// Identity loads the identity for id. An unknown id yields a fresh, unsaved
// identity whose parent is the default identity.
func (s *Service) Identity(ctx context.Context, id string) (*identity.Identity, error) {
	ident, _, err := s.loadIdentity(ctx, id)
	return ident, err
}

// loadIdentity is Identity that also reports whether the identity was created
// rather than found in the store.
func (s *Service) loadIdentity(ctx context.Context, id string) (*identity.Identity, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, errors.New("sender id is required")
	}
	ident, err := s.store.FindByID(ctx, id)
	if err == nil {
		return ident, false, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, false, fmt.Errorf("load identity %s: %w", id, err)
	}

	def, err := s.store.FindDefault(ctx)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		return nil, false, fmt.Errorf("load default identity: %w", err)
	}
	return identity.New(id, def), true, nil
}

// rememberChannel makes the channel a message arrived on the identity's
// delivery target unless one is already set personally. It reports whether
// the profile changed.
func rememberChannel(ident *identity.Identity, channel string) bool {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if channel == "" || ident.IsDefault() {
		return false
	}
	own := ident.Own()
	if own.DeliveryTarget != "" {
		return false
	}
	own.DeliveryTarget = channel
	ident.SetProfile(own)
	return true
}

func (s *Service) conversation(identityID string) *session.Store {
	return session.New(s.conversationPath(identityID))
}

func (s *Service) referenceNow() time.Time {
	return s.now().In(s.loc)
}
