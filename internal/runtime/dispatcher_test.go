package runtime

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

// startDispatcher starts d and returns a shutdown func that cancels it and
// waits for every lane worker.
func startDispatcher(t *testing.T, h Handler) (*Dispatcher, func()) {
	t.Helper()
	d := NewDispatcher(h, 20)
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start dispatcher: %v", err)
	}
	var once sync.Once
	return d, func() {
		once.Do(func() {
			cancel()
			d.Wait()
		})
	}
}

func enqueueText(t *testing.T, d *Dispatcher, w ResponseWriter, sender, text string) {
	t.Helper()
	msg := &Message{Channel: "telegram", SenderID: sender, Text: text}
	if err := d.Enqueue(context.Background(), msg, w); err != nil {
		t.Fatalf("enqueue %q: %v", text, err)
	}
}

func idle(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.WaitUntilIdle(ctx); err != nil {
		t.Fatalf("wait until idle: %v", err)
	}
}

func TestDispatcherKeepsArrivalOrderPerSender(t *testing.T) {
	h := &recordingHandler{}
	d, shutdown := startDispatcher(t, h)
	defer shutdown()

	want := []string{"add trigger", "list triggers", "delete trigger 1"}
	for _, text := range want {
		enqueueText(t, d, &recordingWriter{}, "1001", text)
	}
	idle(t, d)
	shutdown()

	if got := h.texts(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDispatcherHoldsSecondMessageUntilFirstFinishes(t *testing.T) {
	h := &gateHandler{gate: "first", release: make(chan struct{}), started: make(chan string, 4)}
	d, shutdown := startDispatcher(t, h)
	defer shutdown()

	enqueueText(t, d, &recordingWriter{}, "1001", "first")
	expectStarted(t, h.started, "first")
	enqueueText(t, d, &recordingWriter{}, "1001", "second")
	expectNothingStarted(t, h.started)

	close(h.release)
	expectStarted(t, h.started, "second")
}

func TestDispatcherSendersRunIndependently(t *testing.T) {
	h := &gateHandler{gate: "a1", release: make(chan struct{}), started: make(chan string, 4)}
	d, shutdown := startDispatcher(t, h)
	defer shutdown()

	enqueueText(t, d, &recordingWriter{}, "a", "a1")
	expectStarted(t, h.started, "a1")
	enqueueText(t, d, &recordingWriter{}, "a", "a2")
	enqueueText(t, d, &recordingWriter{}, "b", "b1")

	// b1 runs while a1 is still blocked; a2 waits behind a1.
	expectStarted(t, h.started, "b1")
	expectNothingStarted(t, h.started)

	close(h.release)
	expectStarted(t, h.started, "a2")
}

func TestDispatcherStopCancelsRunningAndDropsQueued(t *testing.T) {
	h := &gateHandler{gate: "first", release: make(chan struct{}), started: make(chan string, 4), canceled: make(chan string, 1)}
	d, shutdown := startDispatcher(t, h)
	defer shutdown()

	enqueueText(t, d, &recordingWriter{}, "1001", "first")
	expectStarted(t, h.started, "first")
	enqueueText(t, d, &recordingWriter{}, "1001", "second")
	enqueueText(t, d, &recordingWriter{}, "1001", "third")

	d.Stop()

	select {
	case got := <-h.canceled:
		if got != "first" {
			t.Fatalf("expected first canceled, got %s", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected running message to be canceled")
	}
	idle(t, d)
	expectNothingStarted(t, h.started)
}

func TestDispatcherStopKeepsLanesUsable(t *testing.T) {
	h := &recordingHandler{}
	d, shutdown := startDispatcher(t, h)
	defer shutdown()

	d.Stop()
	enqueueText(t, d, &recordingWriter{}, "1001", "after stop")
	idle(t, d)

	if got := h.texts(); len(got) != 1 {
		t.Fatalf("expected message handled after stop, got %v", got)
	}
}

func TestDispatcherHandlerErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantWrite bool
	}{
		{name: "failure is reported to the sender", err: errors.New("boom"), wantWrite: true},
		{name: "cancellation stays silent", err: context.Canceled},
		{name: "wrapped cancellation stays silent", err: errors.Join(errors.New("oracle"), context.Canceled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, shutdown := startDispatcher(t, &errorHandler{err: tt.err})
			defer shutdown()

			w := &recordingWriter{}
			enqueueText(t, d, w, "1001", "x")
			idle(t, d)

			got := w.texts()
			if tt.wantWrite && (len(got) != 1 || got[0] != userVisibleHandlerError) {
				t.Fatalf("expected one error write, got %v", got)
			}
			if !tt.wantWrite && len(got) != 0 {
				t.Fatalf("expected no writes, got %v", got)
			}
		})
	}
}

func TestDispatcherWaitUntilIdleDeadline(t *testing.T) {
	h := &gateHandler{gate: "first", release: make(chan struct{}), started: make(chan string, 1)}
	d, shutdown := startDispatcher(t, h)
	defer shutdown()

	enqueueText(t, d, &recordingWriter{}, "1001", "first")
	expectStarted(t, h.started, "first")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.WaitUntilIdle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	d.Stop()
}

func TestDispatcherEnqueueLifecycle(t *testing.T) {
	d := NewDispatcher(&recordingHandler{}, 20)
	if err := d.Enqueue(context.Background(), &Message{Text: "early"}, &recordingWriter{}); err == nil {
		t.Fatalf("expected error enqueueing on unstarted dispatcher")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start dispatcher: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatalf("expected error starting twice")
	}
	cancel()
	d.Wait()

	if err := d.Enqueue(context.Background(), &Message{Text: "late"}, &recordingWriter{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled enqueue, got %v", err)
	}
}

func expectStarted(t *testing.T, started <-chan string, want string) {
	t.Helper()
	select {
	case got := <-started:
		if got != want {
			t.Fatalf("expected %s to start, got %s", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("%s did not start", want)
	}
}

func expectNothingStarted(t *testing.T, started <-chan string) {
	t.Helper()
	select {
	case got := <-started:
		t.Fatalf("%s started unexpectedly", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// gateHandler blocks the message whose text equals gate until release is
// closed or its context ends.
type gateHandler struct {
	gate     string
	release  chan struct{}
	started  chan string
	canceled chan string
}

func (h *gateHandler) HandleMessage(ctx context.Context, _ ResponseWriter, msg *Message) error {
	h.started <- msg.Text
	if msg.Text != h.gate {
		return nil
	}
	select {
	case <-h.release:
		return nil
	case <-ctx.Done():
		if h.canceled != nil {
			h.canceled <- msg.Text
		}
		return ctx.Err()
	}
}

type recordingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) HandleMessage(_ context.Context, _ ResponseWriter, msg *Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg.Text)
	return nil
}

func (h *recordingHandler) texts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.messages)
}

type errorHandler struct {
	err error
}

func (h *errorHandler) HandleMessage(context.Context, ResponseWriter, *Message) error {
	return h.err
}

type recordingWriter struct {
	mu       sync.Mutex
	messages []string
}

func (w *recordingWriter) WriteMessage(_ context.Context, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, text)
	return nil
}

func (w *recordingWriter) texts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.messages)
}
