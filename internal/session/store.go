// Package session persists each identity's conversation log as JSONL records, one file per identity, with append, recent-window, and reset operations.
package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/provider"
	"github.com/neoclaw-ai/remindclaw/internal/store"
)

// Speaker identifies who said a turn.
type Speaker string

const (
	// SpeakerHuman is the person talking to the bot.
	SpeakerHuman Speaker = "human"
	// SpeakerBot is the bot itself.
	SpeakerBot Speaker = "bot"
)

// Turn is one logged utterance.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Role maps the speaker onto the oracle's chat roles.
func (t Turn) Role() provider.Role {
	if t.Speaker == SpeakerBot {
		return provider.RoleAssistant
	}
	return provider.RoleUser
}

// Store persists one conversation log in a JSONL file.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a session store for one conversation file.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads all valid JSONL records from disk, oldest first.
// Malformed lines are skipped.
func (s *Store) Load(ctx context.Context) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.path == "" {
		return nil, errors.New("session path is required")
	}

	content, err := store.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	turns := make([]Turn, 0)
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var turn Turn
		if err := json.Unmarshal(line, &turn); err != nil {
			continue
		}
		if turn.Speaker != SpeakerHuman && turn.Speaker != SpeakerBot {
			continue
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan session file: %w", err)
	}
	return turns, nil
}

// Recent returns at most the last n turns, oldest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Turn, error) {
	if n <= 0 {
		return []Turn{}, nil
	}
	turns, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

// Append appends turns as JSONL records.
func (s *Store) Append(ctx context.Context, turns ...Turn) error {
	if s == nil || s.path == "" {
		return errors.New("session path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	encoded, err := encodeTurns(turns)
	if err != nil {
		return err
	}
	if err := store.AppendFile(s.path, encoded); err != nil {
		return fmt.Errorf("append session record: %w", err)
	}
	return nil
}

// Reset clears all persisted conversation history.
func (s *Store) Reset(ctx context.Context) error {
	if s == nil || s.path == "" {
		return errors.New("session path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.WriteFile(s.path, nil); err != nil {
		return fmt.Errorf("reset session file: %w", err)
	}
	return nil
}

func encodeTurns(turns []Turn) ([]byte, error) {
	var b strings.Builder
	for _, turn := range turns {
		encoded, err := json.Marshal(turn)
		if err != nil {
			return nil, fmt.Errorf("marshal session record: %w", err)
		}
		b.Write(encoded)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}
