package config

import (
	"path/filepath"
	"strings"
)

const (
	// Global layout under REMINDCLAW_HOME.
	ConfigFilePath = "config.toml"
	EnvFilePath    = ".env"
	DataDirPath    = "data"
	PIDFilePath    = "remindclaw.pid"

	// Data layout under REMINDCLAW_HOME/data/.
	IdentitiesFilePath   = "identities.json"
	SQLiteFilePath       = "remindclaw.db"
	UsageFilePath        = "usage.jsonl"
	ConversationsDirPath = "conversations"
	ConversationFileExt  = ".jsonl"
)

func homeConfigPath(home string) string {
	return filepath.Join(home, ConfigFilePath)
}

func homeEnvPath(home string) string {
	return filepath.Join(home, EnvFilePath)
}

func defaultHomePath(home string) string {
	return filepath.Join(home, ".remindclaw")
}

func homeDataPath(home string) string {
	return filepath.Join(home, DataDirPath)
}

func (c *Config) ConfigPath() string {
	return homeConfigPath(c.HomeDir)
}

func (c *Config) EnvPath() string {
	return homeEnvPath(c.HomeDir)
}

func (c *Config) DataDir() string {
	return homeDataPath(c.HomeDir)
}

func (c *Config) PIDPath() string {
	return filepath.Join(c.DataDir(), PIDFilePath)
}

func (c *Config) IdentitiesPath() string {
	return filepath.Join(c.DataDir(), IdentitiesFilePath)
}

func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir(), SQLiteFilePath)
}

func (c *Config) UsagePath() string {
	return filepath.Join(c.DataDir(), UsageFilePath)
}

func (c *Config) ConversationsDir() string {
	return filepath.Join(c.DataDir(), ConversationsDirPath)
}

// ConversationPath returns the JSONL log for one identity. Path separators in
// the id are replaced so every identity stays inside ConversationsDir.
func (c *Config) ConversationPath(identityID string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(identityID))
	if name == "" {
		name = "_"
	}
	return filepath.Join(c.ConversationsDir(), name+ConversationFileExt)
}
