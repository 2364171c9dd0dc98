package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/neoclaw-ai/remindclaw/internal/channels"
	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/neoclaw-ai/remindclaw/internal/runtime"
	"github.com/spf13/cobra"
)

// telegramConnector is the part of the Telegram channel poll needs.
type telegramConnector interface {
	runtime.Sender
	Connect(ctx context.Context) error
}

var telegramSenderFactory = func(token string, allowedUsers []int64) telegramConnector {
	return channels.NewTelegram(token, allowedUsers)
}

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one due-trigger cycle now and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			report, err := config.ValidateStartup(cfg)
			if err != nil {
				return err
			}
			warnStartupConditions(cfg, report)
			if err := ensureNoRunningServer(cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			a.chat.RegisterSender(channels.CLIChannel, runtime.SenderFunc(func(_ context.Context, recipient, text string) error {
				_, err := fmt.Fprintf(out, "reminder for %s> %s\n", recipient, text)
				return err
			}))

			telegramCfg := cfg.TelegramChannel()
			if telegramCfg.Enabled && strings.TrimSpace(telegramCfg.Token) != "" {
				telegram := telegramSenderFactory(telegramCfg.Token, telegramCfg.AllowedUsers)
				if err := telegram.Connect(ctx); err != nil {
					return err
				}
				a.chat.RegisterSender(channels.TelegramChannel, telegram)
			}

			cycle, err := a.newScheduler().RunNow(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(
				out,
				"identities=%d checked=%d due=%d fired=%d failed=%d corrupt=%d skipped=%d\n",
				cycle.Identities,
				cycle.Checked,
				cycle.Due,
				cycle.Fired,
				cycle.Failed,
				cycle.Corrupt,
				cycle.Skipped,
			)
			return err
		},
	}
}
