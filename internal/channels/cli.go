// Package channels provides runtime.Listener and runtime.Sender
// implementations for each supported chat channel (CLI and Telegram).
package channels

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/neoclaw-ai/remindclaw/internal/runtime"
	"golang.org/x/term"
)

// CLIChannel is the delivery target name for the interactive terminal.
const CLIChannel = "cli"

const (
	cliPrompt    = "you> "
	cliLaneQueue = 20
	// cliDrainTimeout bounds how long queued input may still run after stdin
	// closes.
	cliDrainTimeout = 5 * time.Second
)

var (
	_ runtime.Listener = (*CLIListener)(nil)
	_ runtime.Sender   = (*CLIListener)(nil)
)

// lineSource yields one raw input line per call.
type lineSource interface {
	next() (string, error)
	// clear and redraw wrap asynchronous output so it does not garble the
	// line being edited.
	clear()
	redraw()
	close() error
}

// CLIListener reads terminal input on behalf of one identity and prints the
// bot's replies and due reminders.
type CLIListener struct {
	in       io.Reader
	out      io.Writer
	senderID string

	mu  sync.Mutex
	src lineSource
}

// NewCLI creates a terminal listener over in and out. Messages are attributed
// to senderID.
func NewCLI(in io.Reader, out io.Writer, senderID string) *CLIListener {
	return &CLIListener{in: in, out: out, senderID: senderID}
}

// Listen reads lines until EOF, /quit or /exit and dispatches each one to
// handler. /stop cancels whatever is still running.
func (c *CLIListener) Listen(ctx context.Context, handler runtime.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	if strings.TrimSpace(c.senderID) == "" {
		return errors.New("cli identity is required")
	}

	src := c.openSource()
	defer src.close()

	if err := c.print(fmt.Sprintf("Interactive mode as %s. Type /quit or /exit to stop.\n", c.senderID)); err != nil {
		return err
	}

	laneCtx, cancelLanes := context.WithCancel(ctx)
	dispatcher := runtime.NewDispatcher(handler, cliLaneQueue)
	if err := dispatcher.Start(laneCtx); err != nil {
		cancelLanes()
		return err
	}
	defer func() {
		cancelLanes()
		dispatcher.Wait()
	}()

	reply := runtime.ResponseWriterFunc(func(_ context.Context, text string) error {
		return c.print("bot> " + text + "\n\n")
	})

	lines := make(chan inputLine)
	go pumpLines(ctx, src, lines)

	for {
		var in inputLine
		var open bool
		select {
		case <-ctx.Done():
			dispatcher.Stop()
			return nil
		case in, open = <-lines:
		}

		switch {
		case !open, errors.Is(in.err, io.EOF):
			drain(dispatcher)
			return nil
		case errors.Is(in.err, context.Canceled):
			dispatcher.Stop()
			return nil
		case in.err != nil:
			return in.err
		}

		text := strings.TrimSpace(in.text)
		switch strings.ToLower(text) {
		case "":
			continue
		case "/stop", "stop":
			dispatcher.Stop()
			_ = reply(ctx, "Stopped.")
			continue
		case "/quit", "quit", "/exit", "exit":
			dispatcher.Stop()
			_ = reply(ctx, "Stopped.")
			return nil
		}

		msg := &runtime.Message{Channel: CLIChannel, SenderID: c.senderID, Text: text}
		if err := dispatcher.Enqueue(ctx, msg, reply); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// Send prints a due reminder for the terminal's identity. Reminders for other
// identities are rejected.
func (c *CLIListener) Send(_ context.Context, recipient, text string) error {
	if strings.TrimSpace(recipient) != c.senderID {
		return fmt.Errorf("cli channel cannot reach identity %q", recipient)
	}
	return c.print("reminder> " + text + "\n\n")
}

func (c *CLIListener) print(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.src != nil {
		c.src.clear()
		defer c.src.redraw()
	}
	_, err := io.WriteString(c.out, s)
	return err
}

// openSource prefers readline on a real terminal and falls back to plain
// buffered reads.
func (c *CLIListener) openSource() lineSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.src != nil {
		return c.src
	}
	if rl, err := newReadline(c.in, c.out); err == nil {
		c.src = readlineSource{rl}
	} else {
		c.src = &plainSource{r: bufio.NewReader(c.in), out: c.out, mu: &c.mu}
	}
	return c.src
}

type inputLine struct {
	text string
	err  error
}

func pumpLines(ctx context.Context, src lineSource, out chan<- inputLine) {
	defer close(out)
	for ctx.Err() == nil {
		text, err := src.next()
		select {
		case out <- inputLine{text: text, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func drain(dispatcher *runtime.Dispatcher) {
	ctx, cancel := context.WithTimeout(context.Background(), cliDrainTimeout)
	defer cancel()
	if err := dispatcher.WaitUntilIdle(ctx); err != nil {
		dispatcher.Stop()
	}
}

type readlineSource struct {
	rl *readline.Instance
}

func (s readlineSource) next() (string, error) {
	line, err := s.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (s readlineSource) clear()       { s.rl.Clean() }
func (s readlineSource) redraw()      { s.rl.Refresh() }
func (s readlineSource) close() error { return s.rl.Close() }

// plainSource serves piped input and tests.
type plainSource struct {
	r   *bufio.Reader
	out io.Writer
	mu  *sync.Mutex
}

func (s *plainSource) next() (string, error) {
	s.mu.Lock()
	_, err := io.WriteString(s.out, cliPrompt)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	line, err := s.r.ReadString('\n')
	if err != nil && line != "" {
		return line, nil
	}
	return line, err
}

func (s *plainSource) clear()       {}
func (s *plainSource) redraw()      {}
func (s *plainSource) close() error { return nil }

func newReadline(in io.Reader, out io.Writer) (*readline.Instance, error) {
	inFile, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(inFile.Fd())) {
		return nil, errors.New("stdin is not a terminal")
	}
	outFile, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(outFile.Fd())) {
		return nil, errors.New("stdout is not a terminal")
	}

	return readline.NewEx(&readline.Config{
		Prompt:          cliPrompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".remindclaw_history"),
		HistoryLimit:    200,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           inFile,
		Stdout:          out,
		Stderr:          out,
	})
}
