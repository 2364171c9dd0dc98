package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/store"
	"github.com/neoclaw-ai/remindclaw/internal/trigger"
)

// ErrNotFound reports a missing identity.
var ErrNotFound = errors.New("identity not found")

// Store persists identities and their triggers.
type Store interface {
	// FindByID loads an identity with the default identity attached as its
	// parent. Looking up DefaultID returns the default identity itself.
	FindByID(ctx context.Context, id string) (*Identity, error)
	// FindDefault loads the default identity, which has no parent.
	FindDefault(ctx context.Context) (*Identity, error)
	// Save persists the identity's own profile and the trigger additions and
	// removals made since it was loaded. Triggers it did not touch, including
	// ones claimed meanwhile, keep their stored state.
	Save(ctx context.Context, ident *Identity) error
	// ListAll returns every identity except the default one.
	ListAll(ctx context.Context) ([]*Identity, error)
	// ClaimTrigger deletes one trigger if it still exists and reports whether
	// this caller removed it. Only one of any number of concurrent callers
	// observes true for a given trigger.
	ClaimTrigger(ctx context.Context, identityID, triggerID string) (bool, error)
}

type record struct {
	Profile
	Triggers map[string]trigger.Trigger `json:"triggers"`
}

// merge applies ident's profile and pending trigger edits onto the stored
// record.
func (r record) merge(ident *Identity) record {
	out := record{Profile: ident.Own(), Triggers: make(map[string]trigger.Trigger, len(r.Triggers))}
	for id, t := range r.Triggers {
		out.Triggers[id] = t
	}
	put, removed := ident.pendingTriggers()
	for _, t := range put {
		out.Triggers[t.ID] = t
	}
	for _, id := range removed {
		delete(out.Triggers, id)
	}
	return out
}

func (r record) identity(id string, parent *Identity) *Identity {
	ident := New(id, parent)
	ident.SetProfile(r.Profile)
	for key, t := range r.Triggers {
		if strings.TrimSpace(t.ID) == "" {
			t.ID = key
		}
		ident.loadTrigger(t)
	}
	return ident
}

// FileStore keeps all identities in one JSON document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// FindByID implements Store.
func (s *FileStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := strings.TrimSpace(id)
	if target == "" {
		return nil, errors.New("identity id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	def := defaultFrom(records)
	if target == DefaultID {
		if def == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
		}
		return def, nil
	}
	rec, ok := records[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	return rec.identity(target, def), nil
}

// FindDefault implements Store.
func (s *FileStore) FindDefault(ctx context.Context) (*Identity, error) {
	return s.FindByID(ctx, DefaultID)
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, ident *Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ident == nil || ident.ID() == "" {
		return errors.New("identity id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := store.Update(s.path, func(current string) ([]byte, error) {
		records, err := decodeRecords(s.path, current)
		if err != nil {
			return nil, err
		}
		records[ident.ID()] = records[ident.ID()].merge(ident)
		return encodeRecords(records)
	})
	if err != nil {
		return err
	}
	ident.markSaved()
	logging.Logger().Info("identity saved", "identity_id", ident.ID())
	return nil
}

// ListAll implements Store.
func (s *FileStore) ListAll(ctx context.Context) ([]*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	def := defaultFrom(records)

	ids := make([]string, 0, len(records))
	for id := range records {
		if id == DefaultID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Identity, 0, len(ids))
	for _, id := range ids {
		out = append(out, records[id].identity(id, def))
	}
	return out, nil
}

// ClaimTrigger implements Store.
func (s *FileStore) ClaimTrigger(ctx context.Context, identityID, triggerID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	identityID = strings.TrimSpace(identityID)
	triggerID = strings.TrimSpace(triggerID)
	if identityID == "" || triggerID == "" {
		return false, errors.New("identity id and trigger id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	claimed := false
	err := store.Update(s.path, func(current string) ([]byte, error) {
		records, err := decodeRecords(s.path, current)
		if err != nil {
			return nil, err
		}
		rec, ok := records[identityID]
		if !ok {
			return nil, store.ErrUnchanged
		}
		if _, ok := rec.Triggers[triggerID]; !ok {
			return nil, store.ErrUnchanged
		}
		delete(rec.Triggers, triggerID)
		records[identityID] = rec
		claimed = true
		return encodeRecords(records)
	})
	if err != nil {
		return false, err
	}
	if claimed {
		logging.Logger().Info("trigger claimed", "identity_id", identityID, "trigger_id", triggerID)
	}
	return claimed, nil
}

func (s *FileStore) readLocked() (map[string]record, error) {
	if strings.TrimSpace(s.path) == "" {
		return nil, errors.New("identities store path is required")
	}
	content, err := store.ReadFile(s.path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return map[string]record{}, nil
	default:
		return nil, fmt.Errorf("read identities file %s: %w", s.path, err)
	}
	return decodeRecords(s.path, content)
}

func decodeRecords(path, content string) (map[string]record, error) {
	records := map[string]record{}
	if len(strings.TrimSpace(content)) == 0 {
		return records, nil
	}
	if err := json.Unmarshal([]byte(content), &records); err != nil {
		return nil, fmt.Errorf("decode identities file %s: %w", path, err)
	}
	for id, rec := range records {
		if rec.Triggers == nil {
			rec.Triggers = map[string]trigger.Trigger{}
			records[id] = rec
		}
	}
	return records, nil
}

func encodeRecords(records map[string]record) ([]byte, error) {
	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode identities: %w", err)
	}
	return append(encoded, '\n'), nil
}

func defaultFrom(records map[string]record) *Identity {
	rec, ok := records[DefaultID]
	if !ok {
		return nil
	}
	return rec.identity(DefaultID, nil)
}
