package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/logging"
)

const (
	userVisibleHandlerError = "Sorry, I could not handle that message. Please try again in a moment."

	// laneIdleTimeout is how long a sender's worker waits for more input
	// before it exits.
	laneIdleTimeout = time.Minute
)

// Dispatcher runs queued messages against a Handler. Each sender gets its own
// lane: one sender's messages run strictly in arrival order, so an
// identity's trigger edits never interleave, while different senders do not
// wait on each other's oracle calls.
type Dispatcher struct {
	handler  Handler
	laneSize int

	mu      sync.Mutex
	started bool
	closing bool
	rootCtx context.Context
	lanes   map[string]*lane

	workers sync.WaitGroup
	done    chan struct{}
}

type lane struct {
	queue chan dispatchItem
	// pending counts items enqueued but not yet received by the worker.
	pending int
	cancel  context.CancelFunc
}

type dispatchItem struct {
	msg    *Message
	writer ResponseWriter
}

// NewDispatcher creates a dispatcher whose per-sender lanes hold up to
// queueSize waiting messages.
func NewDispatcher(handler Handler, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		handler:  handler,
		laneSize: queueSize,
		lanes:    make(map[string]*lane),
		done:     make(chan struct{}),
	}
}

// Start enables dispatching until ctx is canceled.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d == nil {
		return errors.New("dispatcher is required")
	}
	if d.handler == nil {
		return errors.New("handler is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("dispatcher already started")
	}
	d.started = true
	d.rootCtx = ctx
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		d.closing = true
		d.mu.Unlock()
		d.workers.Wait()
		close(d.done)
	}()
	return nil
}

// Enqueue submits one message to its sender's lane. It blocks while the lane
// is full.
func (d *Dispatcher) Enqueue(ctx context.Context, msg *Message, writer ResponseWriter) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if writer == nil {
		return errors.New("response writer is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return errors.New("dispatcher is not started")
	}
	rootCtx := d.rootCtx
	if d.closing || rootCtx.Err() != nil {
		d.mu.Unlock()
		return context.Canceled
	}
	key := laneKey(msg)
	l, ok := d.lanes[key]
	if !ok {
		l = &lane{queue: make(chan dispatchItem, d.laneSize)}
		d.lanes[key] = l
		d.workers.Add(1)
		go d.work(rootCtx, key, l)
	}
	l.pending++
	d.mu.Unlock()

	select {
	case l.queue <- dispatchItem{msg: msg, writer: writer}:
		return nil
	case <-rootCtx.Done():
		d.unpend(l)
		return rootCtx.Err()
	case <-ctx.Done():
		d.unpend(l)
		return ctx.Err()
	}
}

// Stop drops every queued message and cancels the in-flight runs. Lanes stay
// usable for later messages.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	var cancels []context.CancelFunc
	for _, l := range d.lanes {
	drain:
		for {
			select {
			case <-l.queue:
				l.pending--
			default:
				break drain
			}
		}
		if l.cancel != nil {
			cancels = append(cancels, l.cancel)
		}
	}
	d.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// WaitUntilIdle blocks until no message is running or queued in any lane.
func (d *Dispatcher) WaitUntilIdle(ctx context.Context) error {
	if d == nil {
		return errors.New("dispatcher is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if d.isIdle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait blocks until the start context is canceled and every lane worker has
// exited.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return
	}
	<-d.done
}

func (d *Dispatcher) work(ctx context.Context, key string, l *lane) {
	defer d.workers.Done()

	idle := time.NewTimer(laneIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			d.mu.Lock()
			if l.pending == 0 {
				delete(d.lanes, key)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(laneIdleTimeout)
		case item := <-l.queue:
			runCtx, cancel := context.WithCancel(ctx)
			d.mu.Lock()
			l.pending--
			l.cancel = cancel
			d.mu.Unlock()

			d.run(runCtx, ctx, item)

			d.mu.Lock()
			l.cancel = nil
			d.mu.Unlock()
			cancel()
			idle.Reset(laneIdleTimeout)
		}
	}
}

func (d *Dispatcher) run(runCtx, rootCtx context.Context, item dispatchItem) {
	err := d.handler.HandleMessage(runCtx, item.writer, item.msg)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	logging.Logger().Error(
		"message handling failed",
		"channel", item.msg.Channel,
		"sender_id", item.msg.SenderID,
		"err", err,
	)
	if writeErr := item.writer.WriteMessage(rootCtx, userVisibleHandlerError); writeErr != nil {
		logging.Logger().Warn("failed to write handler error message", "err", writeErr)
	}
}

func (d *Dispatcher) unpend(l *lane) {
	d.mu.Lock()
	l.pending--
	d.mu.Unlock()
}

func (d *Dispatcher) isIdle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.lanes {
		if l.pending > 0 || l.cancel != nil {
			return false
		}
	}
	return true
}

func laneKey(msg *Message) string {
	return msg.Channel + "\x00" + msg.SenderID
}
