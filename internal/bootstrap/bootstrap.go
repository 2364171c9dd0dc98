// Package bootstrap creates the remindclaw home layout and seeds the shared
// default identity on first run.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/neoclaw-ai/remindclaw/internal/identity"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
)

// DefaultBotCharacteristics seed the default identity. Every identity without
// its own bot characteristics inherits them.
var DefaultBotCharacteristics = []string{
	"You are friendly and answer briefly.",
	"You reply in the language the person writes in.",
}

// Initialize creates the expected remindclaw home tree if missing.
func Initialize(cfg *config.Config) error {
	dirs := []string{
		cfg.HomeDir,
		cfg.DataDir(),
		cfg.ConversationsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	defaultConfig, err := config.DefaultUserConfigTOML()
	if err != nil {
		return err
	}
	return writeFileIfMissing(cfg.ConfigPath(), defaultConfig)
}

// SeedDefaultIdentity stores the default identity when the store has none.
// An existing default identity is left untouched.
func SeedDefaultIdentity(ctx context.Context, store identity.Store) error {
	_, err := store.FindDefault(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return fmt.Errorf("load default identity: %w", err)
	}

	def := identity.New(identity.DefaultID, nil)
	def.SetProfile(identity.Profile{BotCharacteristics: DefaultBotCharacteristics})
	if err := store.Save(ctx, def); err != nil {
		return fmt.Errorf("seed default identity: %w", err)
	}
	logging.Logger().Info("seeded default identity")
	return nil
}

func writeFileIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %q: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write file %q: %w", path, err)
	}
	return nil
}
