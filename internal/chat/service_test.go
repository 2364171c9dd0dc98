package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/command"
	"github.com/neoclaw-ai/remindclaw/internal/identity"
	"github.com/neoclaw-ai/remindclaw/internal/provider"
	"github.com/neoclaw-ai/remindclaw/internal/runtime"
	"github.com/neoclaw-ai/remindclaw/internal/schedule"
	"github.com/neoclaw-ai/remindclaw/internal/session"
	"github.com/neoclaw-ai/remindclaw/internal/trigger"
)

var testNow = time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

func TestHandleMessageAddsOneTimeTrigger(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(t, &fakeClassifier{
		cmd:     command.AddOneTimeTrigger,
		oneTime: command.Fields{Date: "tomorrow", Time: "6:30", Request: "Tell me the weather"},
	}, &fakeOracle{answer: "unused"})

	w := &recordingWriter{}
	if err := svc.HandleMessage(context.Background(), w, &runtime.Message{Channel: "telegram", SenderID: "42", Text: "weather tomorrow at 6:30"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := w.last(); got != "Trigger added: 2025-01-03 06:30: Tell me the weather" {
		t.Fatalf("unexpected reply %q", got)
	}

	ident, err := st.FindByID(context.Background(), "42")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	triggers := ident.Triggers()
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(triggers))
	}
	if triggers[0].Date != "2025-01-03" || triggers[0].Time != "06:30" || !strings.HasPrefix(triggers[0].ID, "trigger_") {
		t.Fatalf("unexpected trigger %+v", triggers[0])
	}
	if ident.Own().DeliveryTarget != "telegram" {
		t.Fatalf("expected delivery target telegram, got %q", ident.Own().DeliveryTarget)
	}
}

func TestHandleMessageAddsDailyTrigger(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(t, &fakeClassifier{
		cmd:   command.AddDailyTrigger,
		daily: command.Fields{Date: "everyday", Time: "7:00", Request: "Say good morning"},
	}, &fakeOracle{})

	w := &recordingWriter{}
	if err := svc.HandleMessage(context.Background(), w, &runtime.Message{SenderID: "42", Text: "good morning every day at 7"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := w.last(); got != "Trigger added: everyday 07:00: Say good morning" {
		t.Fatalf("unexpected reply %q", got)
	}
	ident, err := st.FindByID(context.Background(), "42")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got := ident.Triggers(); len(got) != 1 || got[0].OneTime() {
		t.Fatalf("expected one daily trigger, got %+v", got)
	}
}

func TestHandleMessageRejectsUnparseableSchedule(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(t, &fakeClassifier{
		cmd:     command.AddOneTimeTrigger,
		oneTime: command.Fields{Date: "next blue moon", Time: "6:30", Request: "Howl"},
	}, &fakeOracle{})

	w := &recordingWriter{}
	if err := svc.HandleMessage(context.Background(), w, &runtime.Message{SenderID: "42", Text: "howl"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(w.last(), "Nothing was scheduled") {
		t.Fatalf("expected rejection, got %q", w.last())
	}
	ident, err := st.FindByID(context.Background(), "42")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(ident.Triggers()) != 0 {
		t.Fatalf("expected no triggers stored, got %v", ident.Triggers())
	}
}

func TestAddTriggerRelativeTimeCrossesMidnight(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &fakeClassifier{}, &fakeOracle{})
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 23, 50, 0, 0, time.UTC) }

	ident := identity.New("42", nil)
	got, err := svc.AddTrigger(context.Background(), ident, command.Fields{Date: "today", Time: "now +20 mins", Request: "Sleep"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got.Date != "2025-01-03" || got.Time != "00:10" {
		t.Fatalf("expected 2025-01-03 00:10, got %s %s", got.Date, got.Time)
	}
}

func TestAddTriggerUsesReferenceLocation(t *testing.T) {
	t.Parallel()

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	svc, _, _ := newTestService(t, &fakeClassifier{}, &fakeOracle{})
	svc.loc = tokyo
	// 20:00 UTC is already the next day in Tokyo.
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC) }

	got, err := svc.AddTrigger(context.Background(), identity.New("42", nil), command.Fields{Date: "today", Time: "8:00", Request: "x"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got.Date != "2025-01-03" {
		t.Fatalf("expected Tokyo date 2025-01-03, got %s", got.Date)
	}
}

func TestAddTriggerParseErrorStoresNothing(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(t, &fakeClassifier{}, &fakeOracle{})
	ident := identity.New("42", nil)
	_, err := svc.AddTrigger(context.Background(), ident, command.Fields{Date: "today", Time: "25:00", Request: "x"})
	if !errors.Is(err, schedule.ErrScheduleParse) {
		t.Fatalf("expected ErrScheduleParse, got %v", err)
	}
	if len(ident.Triggers()) != 0 {
		t.Fatalf("expected no triggers on identity")
	}
	all, err := st.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected nothing saved, got %d identities", len(all))
	}
}

func TestHandleMessageRemoveTrigger(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(t, &fakeClassifier{cmd: command.RemoveTrigger}, &fakeOracle{})
	ident := identity.New("42", nil)
	added, err := svc.AddTrigger(context.Background(), ident, command.Fields{Date: "everyday", Time: "7:00", Request: "Good morning"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	w := &recordingWriter{}
	if err := svc.HandleMessage(context.Background(), w, &runtime.Message{SenderID: "42", Text: "stop the morning message"}); err != nil {
		t.Fatalf("handle list: %v", err)
	}
	if !strings.Contains(w.last(), added.ID) {
		t.Fatalf("expected listing with id %s, got %q", added.ID, w.last())
	}

	if err := svc.HandleMessage(context.Background(), w, &runtime.Message{SenderID: "42", Text: "remove " + added.ID}); err != nil {
		t.Fatalf("handle remove: %v", err)
	}
	if got := w.last(); got != "Trigger removed: everyday 07:00: Good morning" {
		t.Fatalf("unexpected reply %q", got)
	}
	reloaded, err := st.FindByID(context.Background(), "42")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(reloaded.Triggers()) != 0 {
		t.Fatalf("expected trigger deleted")
	}
}

func TestHandleMessageRemoveWithoutTriggers(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &fakeClassifier{cmd: command.RemoveTrigger}, &fakeOracle{})
	w := &recordingWriter{}
	if err := svc.HandleMessage(context.Background(), w, &runtime.Message{SenderID: "42", Text: "stop it"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if w.last() != "You have no triggers." {
		t.Fatalf("unexpected reply %q", w.last())
	}
}

func TestHandleMessageHelp(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &fakeClassifier{cmd: command.ShowHelp}, &fakeOracle{})
	w := &recordingWriter{}
	if err := svc.HandleMessage(context.Background(), w, &runtime.Message{SenderID: "42", Text: "what can you do"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if w.last() != HelpText {
		t.Fatalf("expected help text, got %q", w.last())
	}
}

func TestHandleMessageAnswersAndLogsConversation(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{answer: "Hello!"}
	svc, st, conv := newTestService(t, &fakeClassifier{cmd: command.Other}, oracle)

	def := identity.New(identity.DefaultID, nil)
	def.SetProfile(identity.Profile{
		BotCharacteristics: []string{"Cheerful"},
		Requests:           []string{"Keep it short"},
	})
	if err := st.Save(context.Background(), def); err != nil {
		t.Fatalf("save default: %v", err)
	}

	w := &recordingWriter{}
	if err := svc.HandleMessage(context.Background(), w, &runtime.Message{SenderID: "42", Text: "hi"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if w.last() != "Hello!" {
		t.Fatalf("unexpected reply %q", w.last())
	}

	prompt := oracle.lastRequest().SystemPrompt
	if !strings.Contains(prompt, "- Cheerful") || !strings.Contains(prompt, "- Keep it short") {
		t.Fatalf("expected inherited context in prompt, got %q", prompt)
	}
	if strings.Contains(prompt, "The person's characteristics") || strings.Contains(prompt, "Recent conversation") {
		t.Fatalf("expected empty optional sections omitted, got %q", prompt)
	}

	turns, err := session.New(conv("42")).Load(context.Background())
	if err != nil {
		t.Fatalf("load conversation: %v", err)
	}
	if len(turns) != 2 || turns[0].Speaker != session.SpeakerHuman || turns[1].Content != "Hello!" {
		t.Fatalf("unexpected conversation %+v", turns)
	}

	// The logged turns appear in the next answer's context.
	if err := svc.HandleMessage(context.Background(), w, &runtime.Message{SenderID: "42", Text: "again"}); err != nil {
		t.Fatalf("handle again: %v", err)
	}
	prompt = oracle.lastRequest().SystemPrompt
	if !strings.Contains(prompt, "Recent conversation") || !strings.Contains(prompt, "Content: hi") {
		t.Fatalf("expected recent conversation in prompt, got %q", prompt)
	}
}

func TestHandleMessageSavesNewSender(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(t, &fakeClassifier{cmd: command.Other}, &fakeOracle{answer: "Hi there"})
	def := identity.New(identity.DefaultID, nil)
	def.SetProfile(identity.Profile{BotCharacteristics: []string{"Cheerful"}})
	if err := st.Save(context.Background(), def); err != nil {
		t.Fatalf("save default: %v", err)
	}

	msg := &runtime.Message{Channel: "Telegram", SenderID: "77", Text: "hello"}
	if err := svc.HandleMessage(context.Background(), &recordingWriter{}, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	ident, err := st.FindByID(context.Background(), "77")
	if err != nil {
		t.Fatalf("expected sender saved: %v", err)
	}
	if ident.Own().DeliveryTarget != "telegram" {
		t.Fatalf("expected delivery target telegram, got %q", ident.Own().DeliveryTarget)
	}
	if got := ident.BotCharacteristics(); len(got) != 1 || got[0] != "Cheerful" {
		t.Fatalf("expected default identity as parent, got %v", got)
	}

	// A later message on another channel keeps the remembered target.
	msg = &runtime.Message{Channel: "cli", SenderID: "77", Text: "again"}
	if err := svc.HandleMessage(context.Background(), &recordingWriter{}, msg); err != nil {
		t.Fatalf("handle again: %v", err)
	}
	ident, err = st.FindByID(context.Background(), "77")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ident.Own().DeliveryTarget != "telegram" {
		t.Fatalf("expected delivery target to stay telegram, got %q", ident.Own().DeliveryTarget)
	}
}

func TestHandleMessagePropagatesOracleUnavailable(t *testing.T) {
	t.Parallel()

	svc, _, conv := newTestService(t, &fakeClassifier{cmd: command.Other}, &fakeOracle{err: errors.New("boom")})
	w := &recordingWriter{}
	err := svc.HandleMessage(context.Background(), w, &runtime.Message{SenderID: "42", Text: "hi"})
	if !errors.Is(err, provider.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
	if len(w.messages()) != 0 {
		t.Fatalf("expected no reply, got %v", w.messages())
	}
	turns, err := session.New(conv("42")).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected nothing logged, got %d turns", len(turns))
	}
}

func TestHandleMessageClassifierError(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &fakeClassifier{err: provider.ErrOracleUnavailable}, &fakeOracle{})
	err := svc.HandleMessage(context.Background(), &recordingWriter{}, &runtime.Message{SenderID: "42", Text: "hi"})
	if !errors.Is(err, provider.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestHandleMessageRequiresSender(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &fakeClassifier{}, &fakeOracle{})
	if err := svc.HandleMessage(context.Background(), &recordingWriter{}, &runtime.Message{Text: "hi"}); err == nil {
		t.Fatalf("expected error for missing sender")
	}
}

func TestFireSendsToDeliveryTarget(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{answer: "It will be sunny."}
	svc, st, conv := newTestService(t, &fakeClassifier{}, oracle)
	sent := &recordingSender{}
	svc.RegisterSender("telegram", sent)

	def := identity.New(identity.DefaultID, nil)
	def.SetProfile(identity.Profile{DeliveryTarget: "telegram", HumanCharacteristics: []string{"Likes cats"}})
	if err := st.Save(context.Background(), def); err != nil {
		t.Fatalf("save default: %v", err)
	}
	ident := identity.New("42", def)

	trig := trigger.Trigger{ID: "trigger_1", Event: trigger.EventTimer, Date: "everyday", Time: "07:00", Request: "Tell me the weather"}
	if err := svc.Fire(context.Background(), ident, trig); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if len(sent.sent) != 1 || sent.sent[0] != "42:It will be sunny." {
		t.Fatalf("unexpected sends %v", sent.sent)
	}
	req := oracle.lastRequest()
	if req.Messages[0].Content != "Tell me the weather" {
		t.Fatalf("expected request as user text, got %q", req.Messages[0].Content)
	}
	if strings.Contains(req.SystemPrompt, "Likes cats") {
		t.Fatalf("expected human characteristics omitted from request context")
	}

	turns, err := session.New(conv("42")).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(turns) != 1 || turns[0].Speaker != session.SpeakerBot {
		t.Fatalf("expected reminder logged as bot turn, got %+v", turns)
	}
}

func TestFireWithoutDeliveryTarget(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &fakeClassifier{}, &fakeOracle{answer: "x"})
	err := svc.Fire(context.Background(), identity.New("42", nil), trigger.Trigger{ID: "trigger_1", Request: "x"})
	if !errors.Is(err, ErrNoDeliveryTarget) {
		t.Fatalf("expected ErrNoDeliveryTarget, got %v", err)
	}

	ident := identity.New("43", nil)
	ident.SetProfile(identity.Profile{DeliveryTarget: "carrier-pigeon"})
	err = svc.Fire(context.Background(), ident, trigger.Trigger{ID: "trigger_1", Request: "x"})
	if !errors.Is(err, ErrNoDeliveryTarget) {
		t.Fatalf("expected ErrNoDeliveryTarget for unknown target, got %v", err)
	}
}

func TestFireOracleFailureSendsNothing(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, &fakeClassifier{}, &fakeOracle{err: errors.New("down")})
	sent := &recordingSender{}
	svc.RegisterSender("cli", sent)
	ident := identity.New("42", nil)
	ident.SetProfile(identity.Profile{DeliveryTarget: "cli"})

	err := svc.Fire(context.Background(), ident, trigger.Trigger{ID: "trigger_1", Request: "x"})
	if !errors.Is(err, provider.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
	if len(sent.sent) != 0 {
		t.Fatalf("expected nothing sent, got %v", sent.sent)
	}
}

func TestResetConversation(t *testing.T) {
	t.Parallel()

	svc, _, conv := newTestService(t, &fakeClassifier{cmd: command.Other}, &fakeOracle{answer: "ok"})
	if err := svc.HandleMessage(context.Background(), &recordingWriter{}, &runtime.Message{SenderID: "42", Text: "hi"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := svc.ResetConversation(context.Background(), "42"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	turns, err := session.New(conv("42")).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty conversation, got %d", len(turns))
	}
}

func newTestService(t *testing.T, classifier Classifier, oracle provider.Provider) (*Service, identity.Store, func(string) string) {
	t.Helper()

	dir := t.TempDir()
	st := identity.NewFileStore(filepath.Join(dir, "identities.json"))
	conv := func(id string) string { return filepath.Join(dir, "conversations", id+".jsonl") }
	svc, err := New(Options{
		Store:               st,
		Classifier:          classifier,
		Oracle:              oracle,
		ConversationPath:    conv,
		Location:            time.UTC,
		RecentMessages:      10,
		UsePersonalRequests: true,
		UseDefaultRequests:  true,
		Now:                 func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, st, conv
}

type fakeClassifier struct {
	cmd     command.Command
	oneTime command.Fields
	daily   command.Fields
	err     error
}

func (c *fakeClassifier) Classify(context.Context, string) (command.Command, error) {
	return c.cmd, c.err
}

func (c *fakeClassifier) OneTimeTrigger(context.Context, string) (command.Fields, error) {
	return c.oneTime, nil
}

func (c *fakeClassifier) DailyTrigger(context.Context, string) (command.Fields, error) {
	return c.daily, nil
}

type fakeOracle struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []provider.ChatRequest
}

func (o *fakeOracle) Chat(_ context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	if o.err != nil {
		return nil, o.err
	}
	return &provider.ChatResponse{Content: o.answer}, nil
}

func (o *fakeOracle) lastRequest() provider.ChatRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.requests) == 0 {
		return provider.ChatRequest{}
	}
	return o.requests[len(o.requests)-1]
}

type recordingWriter struct {
	mu   sync.Mutex
	msgs []string
}

func (w *recordingWriter) WriteMessage(_ context.Context, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, text)
	return nil
}

func (w *recordingWriter) messages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.msgs...)
}

func (w *recordingWriter) last() string {
	msgs := w.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type recordingSender struct {
	sent []string
}

func (s *recordingSender) Send(_ context.Context, recipient, text string) error {
	s.sent = append(s.sent, recipient+":"+text)
	return nil
}
