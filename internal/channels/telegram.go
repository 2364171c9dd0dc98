package channels

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/runtime"
)

// TelegramChannel is the delivery target name for Telegram.
const TelegramChannel = "telegram"

const (
	telegramLaneQueue = 20
	typingInterval    = 4 * time.Second
	logPreviewRunes   = 100
)

// telegramClient is the slice of *bot.Bot the channel calls.
type telegramClient interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// TelegramListener receives Telegram updates for allowed users and pushes
// replies and reminders to chats.
type TelegramListener struct {
	token string
	// allowed is empty when every user is accepted.
	allowed map[int64]struct{}

	mu     sync.Mutex
	client telegramClient
}

var (
	_ runtime.Listener = (*TelegramListener)(nil)
	_ runtime.Sender   = (*TelegramListener)(nil)
)

// NewTelegram creates a Telegram channel over one bot token and an allowlist
// of Telegram user ids. An empty allowlist accepts every user.
func NewTelegram(token string, allowedUsers []int64) *TelegramListener {
	allowed := make(map[int64]struct{}, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = struct{}{}
	}
	return &TelegramListener{token: strings.TrimSpace(token), allowed: allowed}
}

// Connect creates a bot client for sending without polling for updates.
// Listen connects on its own; Connect serves one-shot reminder runs.
func (t *TelegramListener) Connect(context.Context) error {
	if t.currentClient() != nil {
		return nil
	}
	b, err := t.newBot()
	if err != nil {
		return err
	}
	t.use(b)
	return nil
}

// Listen long-polls Telegram until ctx ends. Each chat gets its own dispatch
// lane.
func (t *TelegramListener) Listen(ctx context.Context, handler runtime.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	if len(t.allowed) == 0 {
		logging.Logger().Warn("channels.telegram.allowed_users is empty; accepting messages from every Telegram user")
	}

	laneCtx, cancelLanes := context.WithCancel(ctx)
	defer cancelLanes()
	dispatcher := runtime.NewDispatcher(typingHandler{channel: t, next: handler}, telegramLaneQueue)

	b, err := t.newBot(bot.WithDefaultHandler(func(updateCtx context.Context, _ *bot.Bot, update *models.Update) {
		if update != nil {
			t.accept(updateCtx, dispatcher, update.Message)
		}
	}))
	if err != nil {
		return err
	}
	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("fetch telegram bot profile: %w", err)
	}
	logging.Logger().Info("connected to telegram", "bot", "@"+strings.TrimSpace(me.Username))
	t.use(b)

	if err := dispatcher.Start(laneCtx); err != nil {
		return err
	}
	go b.Start(ctx)

	<-ctx.Done()
	dispatcher.Stop()
	cancelLanes()
	dispatcher.Wait()
	return nil
}

// Send pushes text to a chat. The recipient is the Telegram chat id, which
// for private chats is also the identity id.
func (t *TelegramListener) Send(ctx context.Context, recipient, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram recipient %q is not a chat id: %w", recipient, err)
	}
	return t.deliver(ctx, chatID, text)
}

// accept filters one inbound update and queues it on its chat's lane.
func (t *TelegramListener) accept(ctx context.Context, dispatcher *runtime.Dispatcher, msg *models.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	log := logging.Logger().With("user_id", msg.From.ID, "username", strings.TrimSpace(msg.From.Username))
	log.Info("telegram inbound message", "text", preview(msg.Text, logPreviewRunes))

	if !t.allows(msg.From.ID) {
		log.Warn("telegram message from unlisted user dropped")
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	chatID := msg.Chat.ID
	inbound := &runtime.Message{
		Channel:  TelegramChannel,
		SenderID: strconv.FormatInt(chatID, 10),
		Text:     text,
	}
	if err := dispatcher.Enqueue(ctx, inbound, chatReply{channel: t, chatID: chatID}); err != nil {
		log.Warn("telegram enqueue failed", "err", err)
	}
}

func (t *TelegramListener) allows(userID int64) bool {
	if len(t.allowed) == 0 {
		return true
	}
	_, ok := t.allowed[userID]
	return ok
}

// deliver sends markdown rendered as Telegram HTML. When rendering fails, or
// Telegram rejects the HTML, the raw text goes out instead.
func (t *TelegramListener) deliver(ctx context.Context, chatID int64, text string) error {
	client := t.currentClient()
	if client == nil {
		return errors.New("telegram bot is not connected")
	}

	if formatted, ok := formatTelegram(text); ok && strings.TrimSpace(formatted) != "" {
		_, err := client.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      formatted,
			ParseMode: models.ParseModeHTML,
		})
		if err == nil {
			return nil
		}
		logging.Logger().Warn("telegram html send failed, retrying as plain text", "chat_id", chatID, "err", err)
	}

	_, err := client.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	return err
}

// showTyping keeps the typing indicator alive until ctx ends.
func (t *TelegramListener) showTyping(ctx context.Context, chatID int64) {
	client := t.currentClient()
	if client == nil {
		return
	}
	ticker := time.NewTicker(typingInterval)
	defer ticker.Stop()
	for {
		_, _ = client.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: models.ChatActionTyping,
		})
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *TelegramListener) newBot(opts ...bot.Option) (*bot.Bot, error) {
	if t.token == "" {
		return nil, errors.New("telegram token is required")
	}
	b, err := bot.New(t.token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

func (t *TelegramListener) use(client telegramClient) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.client = client
}

func (t *TelegramListener) currentClient() telegramClient {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

// chatReply writes handler replies back to the chat a message came from.
type chatReply struct {
	channel *TelegramListener
	chatID  int64
}

func (r chatReply) WriteMessage(ctx context.Context, text string) error {
	return r.channel.deliver(ctx, r.chatID, text)
}

// typingHandler shows the typing indicator while a free-text message is
// answered. Slash commands reply immediately and skip it.
type typingHandler struct {
	channel *TelegramListener
	next    runtime.Handler
}

func (h typingHandler) HandleMessage(ctx context.Context, w runtime.ResponseWriter, msg *runtime.Message) error {
	if reply, ok := w.(chatReply); ok && msg != nil && !strings.HasPrefix(msg.Text, "/") {
		typingCtx, stop := context.WithCancel(ctx)
		defer stop()
		go h.channel.showTyping(typingCtx, reply.chatID)
	}
	return h.next.HandleMessage(ctx, w, msg)
}

func preview(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
