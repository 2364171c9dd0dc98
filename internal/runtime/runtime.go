// Package runtime defines the channel-neutral message flow: listeners turn
// transport input into Messages, a Handler answers them, and Senders push
// unsolicited messages such as fired reminders.
package runtime

import "context"

// Message is an inbound message delivered by a channel transport.
type Message struct {
	// Channel names the transport the message arrived on ("telegram", "cli").
	Channel string
	// SenderID is the identity id of the author. Replies and reminders for
	// this identity are addressed to it.
	SenderID string
	Text     string
}

// ResponseWriter sends handler responses back to the active channel transport.
type ResponseWriter interface {
	WriteMessage(ctx context.Context, text string) error
}

// ResponseWriterFunc adapts a function to ResponseWriter.
type ResponseWriterFunc func(ctx context.Context, text string) error

// WriteMessage implements ResponseWriter.
func (f ResponseWriterFunc) WriteMessage(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Handler processes inbound messages and writes responses.
type Handler interface {
	HandleMessage(ctx context.Context, w ResponseWriter, msg *Message) error
}

// Listener receives channel input and dispatches it to a Handler.
type Listener interface {
	Listen(ctx context.Context, handler Handler) error
}

// Sender pushes a message to a recipient outside any request/response cycle.
type Sender interface {
	Send(ctx context.Context, recipient, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, recipient, text string) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, recipient, text string) error {
	return f(ctx, recipient, text)
}
