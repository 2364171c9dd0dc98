// Package config loads remindclaw runtime configuration from a TOML file, an optional .env file, and environment variables, exposing typed structs and accessors for all sections.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultLLMProfile      = "default"
	defaultTelegramChannel = "telegram"
)

const (
	// StorageDriverFile keeps identities in one JSON file.
	StorageDriverFile = "file"
	// StorageDriverSQLite keeps identities in an embedded SQLite database.
	StorageDriverSQLite = "sqlite"
)

// Config is the runtime configuration loaded from defaults, config.toml, and env vars.
type Config struct {
	// HomeDir is runtime-resolved from REMINDCLAW_HOME and not read from config.
	HomeDir   string                       `mapstructure:"-"`
	Channels  map[string]ChannelConfig     `mapstructure:"channels"`
	LLM       map[string]LLMProviderConfig `mapstructure:"llm"`
	Scheduler SchedulerConfig              `mapstructure:"scheduler"`
	Storage   StorageConfig                `mapstructure:"storage"`
	Bot       BotConfig                    `mapstructure:"bot"`
	Costs     CostsConfig                  `mapstructure:"costs"`
}

// ChannelConfig configures one inbound/outbound channel.
type ChannelConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Token        string  `mapstructure:"token"`
	AllowedUsers []int64 `mapstructure:"allowed_users"`
}

// LLMProviderConfig configures one LLM provider profile.
type LLMProviderConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SchedulerConfig controls the trigger poll cadence and the reference
// timezone all schedule arithmetic happens in.
type SchedulerConfig struct {
	WindowMinutes int    `mapstructure:"window_minutes"`
	Timezone      string `mapstructure:"timezone"`
}

// StorageConfig selects the identity store backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// CostsConfig caps oracle spend in USD. Zero disables a limit.
type CostsConfig struct {
	DailyLimit   float64 `mapstructure:"daily_limit"`
	MonthlyLimit float64 `mapstructure:"monthly_limit"`
}

// BotConfig controls answer composition.
type BotConfig struct {
	// CLIIdentity is the identity the local REPL talks as.
	CLIIdentity         string `mapstructure:"cli_identity"`
	RecentMessages      int    `mapstructure:"recent_messages"`
	UsePersonalRequests bool   `mapstructure:"use_personal_requests"`
	UseDefaultRequests  bool   `mapstructure:"use_default_requests"`
}

var defaultConfig = Config{
	Channels: map[string]ChannelConfig{
		defaultTelegramChannel: {
			Enabled: true,
			Token:   "",
		},
	},
	LLM: map[string]LLMProviderConfig{
		defaultLLMProfile: {
			APIKey:         "",
			Provider:       "anthropic",
			Model:          "claude-sonnet-4-6",
			MaxTokens:      1024,
			RequestTimeout: 30 * time.Second,
		},
	},
	Scheduler: SchedulerConfig{
		WindowMinutes: 30,
		Timezone:      "Asia/Tokyo",
	},
	Storage: StorageConfig{
		Driver: StorageDriverFile,
	},
	Bot: BotConfig{
		CLIIdentity:         "local",
		RecentMessages:      10,
		UsePersonalRequests: true,
		UseDefaultRequests:  true,
	},
}

// defaultUserConfig is the minimal bootstrap config written for first-time
// users. It only carries user-editable essentials.
var defaultUserConfig = Config{
	Channels: map[string]ChannelConfig{
		defaultTelegramChannel: {
			Enabled: true,
			Token:   "$TELEGRAM_BOT_TOKEN",
		},
	},
	LLM: map[string]LLMProviderConfig{
		defaultLLMProfile: {
			APIKey:         "$ANTHROPIC_API_KEY",
			Provider:       "anthropic",
			Model:          "claude-sonnet-4-6",
			RequestTimeout: 30 * time.Second,
		},
	},
	Scheduler: SchedulerConfig{
		WindowMinutes: 30,
		Timezone:      "Asia/Tokyo",
	},
	Storage: StorageConfig{
		Driver: StorageDriverFile,
	},
}

// homeDir returns the remindclaw home directory.
// Uses REMINDCLAW_HOME env var if set, otherwise defaults to ~/.remindclaw.
func homeDir() (string, error) {
	if dir := os.Getenv("REMINDCLAW_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return defaultHomePath(home), nil
}

// Load merges hardcoded defaults and config file values in that order.
// Variables from $REMINDCLAW_HOME/.env are exported first (without
// overriding the real environment) so config values can reference them.
func Load() (*Config, error) {
	homeDir, err := homeDir()
	if err != nil {
		return nil, err
	}
	if err := loadEnvFile(homeEnvPath(homeDir)); err != nil {
		return nil, err
	}

	v, err := readViper(homeDir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		expandEnvStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = decodeHook
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HomeDir = homeDir

	return &cfg, nil
}

// Write writes the merged configuration (defaults overlaid by user
// config) to w in TOML format.
func Write(w io.Writer) error {
	if w == nil {
		return errors.New("writer is required")
	}

	homeDir, err := homeDir()
	if err != nil {
		return err
	}
	v, err := readViper(homeDir)
	if err != nil {
		return err
	}

	// Keep duration fields human-readable in generated TOML.
	for profile := range v.GetStringMap("llm") {
		key := "llm." + profile + ".request_timeout"
		v.Set(key, v.GetDuration(key).String())
	}

	if err := v.WriteConfigTo(w); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultUserConfigTOML renders the minimal bootstrap user config as TOML.
func DefaultUserConfigTOML() (string, error) {
	v := viper.New()
	v.SetConfigType("toml")

	for profile, llm := range defaultUserConfig.LLM {
		v.Set("llm."+profile+".api_key", llm.APIKey)
		v.Set("llm."+profile+".provider", llm.Provider)
		v.Set("llm."+profile+".model", llm.Model)
		v.Set("llm."+profile+".request_timeout", llm.RequestTimeout.String())
	}
	for channel, ch := range defaultUserConfig.Channels {
		v.Set("channels."+channel+".enabled", ch.Enabled)
		v.Set("channels."+channel+".token", ch.Token)
	}
	v.Set("scheduler.window_minutes", defaultUserConfig.Scheduler.WindowMinutes)
	v.Set("scheduler.timezone", defaultUserConfig.Scheduler.Timezone)
	v.Set("storage.driver", defaultUserConfig.Storage.Driver)
	v.Set("costs.daily_limit", defaultUserConfig.Costs.DailyLimit)
	v.Set("costs.monthly_limit", defaultUserConfig.Costs.MonthlyLimit)

	var out bytes.Buffer
	if err := v.WriteConfigTo(&out); err != nil {
		return "", fmt.Errorf("write default user config: %w", err)
	}
	return out.String(), nil
}

func readViper(homeDir string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(homeConfigPath(homeDir))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	telegram := defaultConfig.Channels[defaultTelegramChannel]
	v.SetDefault("channels.telegram.enabled", telegram.Enabled)
	v.SetDefault("channels.telegram.token", telegram.Token)
	v.SetDefault("channels.telegram.allowed_users", []int64{})

	llm := defaultConfig.LLM[defaultLLMProfile]
	v.SetDefault("llm.default.api_key", llm.APIKey)
	v.SetDefault("llm.default.provider", llm.Provider)
	v.SetDefault("llm.default.model", llm.Model)
	v.SetDefault("llm.default.max_tokens", llm.MaxTokens)
	v.SetDefault("llm.default.request_timeout", llm.RequestTimeout)

	v.SetDefault("scheduler.window_minutes", defaultConfig.Scheduler.WindowMinutes)
	v.SetDefault("scheduler.timezone", defaultConfig.Scheduler.Timezone)

	v.SetDefault("storage.driver", defaultConfig.Storage.Driver)

	v.SetDefault("bot.cli_identity", defaultConfig.Bot.CLIIdentity)
	v.SetDefault("bot.recent_messages", defaultConfig.Bot.RecentMessages)
	v.SetDefault("bot.use_personal_requests", defaultConfig.Bot.UsePersonalRequests)
	v.SetDefault("bot.use_default_requests", defaultConfig.Bot.UseDefaultRequests)

	v.SetDefault("costs.daily_limit", defaultConfig.Costs.DailyLimit)
	v.SetDefault("costs.monthly_limit", defaultConfig.Costs.MonthlyLimit)
}

// DefaultLLM returns the default LLM profile with fallback defaults.
func (c *Config) DefaultLLM() LLMProviderConfig {
	if llm, ok := c.LLM[defaultLLMProfile]; ok {
		return llm
	}
	return defaultConfig.LLM[defaultLLMProfile]
}

// TelegramChannel returns Telegram channel config with fallback defaults.
func (c *Config) TelegramChannel() ChannelConfig {
	if ch, ok := c.Channels[defaultTelegramChannel]; ok {
		return ch
	}
	return defaultConfig.Channels[defaultTelegramChannel]
}

// Location loads the configured reference timezone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		name = defaultConfig.Scheduler.Timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func expandEnvStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		value, ok := data.(string)
		if !ok {
			return data, nil
		}
		return os.ExpandEnv(value), nil
	}
}
