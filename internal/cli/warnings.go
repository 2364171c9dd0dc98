package cli

import (
	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
)

// Emit startup warnings derived from non-fatal config/runtime conditions.
func warnStartupConditions(cfg *config.Config, report *config.ValidationReport) {
	if cfg == nil {
		return
	}
	if report != nil {
		for _, warning := range report.Warnings {
			logging.Logger().Warn(warning)
		}
	}

	if !cfg.TelegramChannel().Enabled {
		logging.Logger().Warn("channels.telegram is disabled; fired reminders for telegram identities will fail until it is enabled")
	}
	if cfg.Bot.RecentMessages == 0 {
		logging.Logger().Warn("bot.recent_messages is 0; answers will not see earlier conversation")
	}
}
