package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validatable is implemented by config sections that can self-validate.
type Validatable interface {
	Validate() error
}

type ValidationReport struct {
	Warnings []string
}

func (c LLMProviderConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("provider is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}

	switch c.Provider {
	case "anthropic", "openrouter":
		if c.APIKey == "" {
			return errors.New("api_key is required")
		}
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	return nil
}

func (c ChannelConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Token == "" {
		return errors.New("token is required when enabled=true")
	}
	return nil
}

func (c SchedulerConfig) Validate() error {
	if c.WindowMinutes <= 0 {
		return errors.New("window_minutes must be > 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c StorageConfig) Validate() error {
	switch c.Driver {
	case StorageDriverFile, StorageDriverSQLite:
		return nil
	default:
		return fmt.Errorf("invalid driver %q (allowed: %q, %q)", c.Driver, StorageDriverFile, StorageDriverSQLite)
	}
}

func (c BotConfig) Validate() error {
	if strings.TrimSpace(c.CLIIdentity) == "" {
		return errors.New("cli_identity is required")
	}
	if c.RecentMessages < 0 {
		return errors.New("recent_messages must be >= 0")
	}
	return nil
}

func (c CostsConfig) Validate() error {
	if c.DailyLimit < 0 {
		return errors.New("daily_limit must be >= 0")
	}
	if c.MonthlyLimit < 0 {
		return errors.New("monthly_limit must be >= 0")
	}
	return nil
}

// ValidateStartup validates startup configuration and returns warning messages.
func ValidateStartup(cfg *Config) (*ValidationReport, error) {
	var errs []error
	report := &ValidationReport{}

	if len(cfg.LLM) == 0 {
		errs = append(errs, errors.New("at least one llm.* profile is required"))
	}

	if err := cfg.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if err := cfg.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if err := cfg.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot: %w", err))
	}
	if err := cfg.Costs.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("costs: %w", err))
	}

	for name, llmCfg := range cfg.LLM {
		if err := llmCfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("llm.%s: %w", name, err))
		}
	}
	for name, chCfg := range cfg.Channels {
		if err := chCfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("channels.%s: %w", name, err))
		}
		if name == defaultTelegramChannel && chCfg.Enabled && len(chCfg.AllowedUsers) == 0 {
			report.Warnings = append(report.Warnings, "channels.telegram.allowed_users is empty; every Telegram user can talk to the bot")
		}
	}
	if cfg.Scheduler.WindowMinutes > 60 {
		report.Warnings = append(report.Warnings, "scheduler.window_minutes is longer than an hour; daily triggers may fire late")
	}

	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	return report, nil
}
