package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/trigger"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS identities (
	id                    TEXT PRIMARY KEY,
	bot_characteristics   TEXT NOT NULL DEFAULT '[]',
	human_characteristics TEXT NOT NULL DEFAULT '[]',
	requests              TEXT NOT NULL DEFAULT '[]',
	delivery_target       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS triggers (
	id          TEXT PRIMARY KEY,
	identity_id TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
	event       TEXT NOT NULL,
	date        TEXT NOT NULL,
	time        TEXT NOT NULL,
	request     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS triggers_identity_id ON triggers(identity_id);
`

// SQLiteStore persists identities in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := "file:" + trimmed + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", trimmed, err)
	}
	// One writer keeps claim semantics simple and avoids SQLITE_BUSY storms.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", trimmed, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FindByID implements Store.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	target := strings.TrimSpace(id)
	if target == "" {
		return nil, errors.New("identity id is required")
	}
	def, err := s.load(ctx, DefaultID, nil)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if target == DefaultID {
		if def == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
		}
		return def, nil
	}
	return s.load(ctx, target, def)
}

// FindDefault implements Store.
func (s *SQLiteStore) FindDefault(ctx context.Context) (*Identity, error) {
	return s.FindByID(ctx, DefaultID)
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, ident *Identity) error {
	if ident == nil || ident.ID() == "" {
		return errors.New("identity id is required")
	}
	own := ident.Own()
	bot, err := encodeList(own.BotCharacteristics)
	if err != nil {
		return err
	}
	human, err := encodeList(own.HumanCharacteristics)
	if err != nil {
		return err
	}
	requests, err := encodeList(own.Requests)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO identities (id, bot_characteristics, human_characteristics, requests, delivery_target)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	bot_characteristics = excluded.bot_characteristics,
	human_characteristics = excluded.human_characteristics,
	requests = excluded.requests,
	delivery_target = excluded.delivery_target`,
			ident.ID(), bot, human, requests, own.DeliveryTarget,
		); err != nil {
			return fmt.Errorf("upsert identity %s: %w", ident.ID(), err)
		}
		put, removed := ident.pendingTriggers()
		for _, id := range removed {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM triggers WHERE id = ? AND identity_id = ?`, id, ident.ID(),
			); err != nil {
				return fmt.Errorf("delete trigger %s: %w", id, err)
			}
		}
		for _, t := range put {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO triggers (id, identity_id, event, date, time, request)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	event = excluded.event,
	date = excluded.date,
	time = excluded.time,
	request = excluded.request`,
				t.ID, ident.ID(), t.Event, t.Date, t.Time, t.Request,
			); err != nil {
				return fmt.Errorf("insert trigger %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	ident.markSaved()
	logging.Logger().Info("identity saved", "identity_id", ident.ID())
	return nil
}

// ListAll implements Store.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*Identity, error) {
	def, err := s.load(ctx, DefaultID, nil)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM identities WHERE id <> ? ORDER BY id`, DefaultID)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan identity id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	rows.Close()

	out := make([]*Identity, 0, len(ids))
	for _, id := range ids {
		ident, err := s.load(ctx, id, def)
		if err != nil {
			return nil, err
		}
		out = append(out, ident)
	}
	return out, nil
}

// ClaimTrigger implements Store.
func (s *SQLiteStore) ClaimTrigger(ctx context.Context, identityID, triggerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM triggers WHERE id = ? AND identity_id = ?`,
		strings.TrimSpace(triggerID), strings.TrimSpace(identityID),
	)
	if err != nil {
		return false, fmt.Errorf("claim trigger %s: %w", triggerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim trigger %s: %w", triggerID, err)
	}
	if n == 1 {
		logging.Logger().Info("trigger claimed", "identity_id", identityID, "trigger_id", triggerID)
	}
	return n == 1, nil
}

func (s *SQLiteStore) load(ctx context.Context, id string, parent *Identity) (*Identity, error) {
	var bot, human, requests, target string
	err := s.db.QueryRowContext(ctx,
		`SELECT bot_characteristics, human_characteristics, requests, delivery_target FROM identities WHERE id = ?`,
		id,
	).Scan(&bot, &human, &requests, &target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load identity %s: %w", id, err)
	}

	var profile Profile
	if profile.BotCharacteristics, err = decodeList(bot); err != nil {
		return nil, fmt.Errorf("identity %s bot_characteristics: %w", id, err)
	}
	if profile.HumanCharacteristics, err = decodeList(human); err != nil {
		return nil, fmt.Errorf("identity %s human_characteristics: %w", id, err)
	}
	if profile.Requests, err = decodeList(requests); err != nil {
		return nil, fmt.Errorf("identity %s requests: %w", id, err)
	}
	profile.DeliveryTarget = target

	ident := New(id, parent)
	ident.SetProfile(profile)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event, date, time, request FROM triggers WHERE identity_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load triggers for %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var t trigger.Trigger
		if err := rows.Scan(&t.ID, &t.Event, &t.Date, &t.Time, &t.Request); err != nil {
			return nil, fmt.Errorf("scan trigger for %s: %w", id, err)
		}
		ident.loadTrigger(t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triggers for %s: %w", id, err)
	}
	return ident, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(raw), nil
}

func decodeList(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
