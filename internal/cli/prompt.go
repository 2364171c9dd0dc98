package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/neoclaw-ai/remindclaw/internal/channels"
	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/runtime"
	"github.com/spf13/cobra"
)

func newPromptCmd() *cobra.Command {
	var (
		prompt        string
		identityID    string
		withScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Send a message (or start interactive chat without -p)",
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

			sender := strings.TrimSpace(identityID)
			if sender == "" {
				sender = cfg.Bot.CLIIdentity
			}
			if withScheduler {
				if err := ensureNoRunningServer(cfg); err != nil {
					return err
				}
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if trimmed := strings.TrimSpace(prompt); trimmed != "" {
				writer := &singleShotWriter{out: cmd.OutOrStdout()}
				msg := &runtime.Message{Channel: channels.CLIChannel, SenderID: sender, Text: trimmed}
				return a.handler().HandleMessage(cmd.Context(), writer, msg)
			}

			listener := channels.NewCLI(cmd.InOrStdin(), cmd.OutOrStdout(), sender)
			a.chat.RegisterSender(channels.CLIChannel, listener)

			if withScheduler {
				service := a.newScheduler()
				if err := service.Start(cmd.Context()); err != nil {
					return err
				}
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					if err := service.Stop(stopCtx); err != nil {
						logging.Logger().Warn("scheduler stop failed", "err", err)
					}
				}()
			}

			return listener.Listen(cmd.Context(), a.handler())
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt message")
	cmd.Flags().StringVar(&identityID, "identity", "", "Identity to talk as (default bot.cli_identity)")
	cmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "Also poll for due triggers and print reminders for this identity")

	return cmd
}

type singleShotWriter struct {
	out io.Writer
}

// WriteMessage writes one response message for one-shot prompt mode.
func (w *singleShotWriter) WriteMessage(_ context.Context, text string) error {
	_, err := fmt.Fprintln(w.out, text)
	return err
}

