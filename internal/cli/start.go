package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/channels"
	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the Telegram listener and the trigger scheduler",
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

			llm := cfg.DefaultLLM()
			logging.Logger().Info(
				"starting server",
				"provider", llm.Provider,
				"model", llm.Model,
				"storage", cfg.Storage.Driver,
				"timezone", cfg.Scheduler.Timezone,
				"window_minutes", cfg.Scheduler.WindowMinutes,
				"home_dir", cfg.HomeDir,
			)

			if err := ensureNoRunningServer(cfg); err != nil {
				return err
			}
			pidFilePath := cfg.PIDPath()
			if err := os.WriteFile(pidFilePath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
				return fmt.Errorf("write pid file %q: %w", pidFilePath, err)
			}
			defer func() {
				os.Remove(pidFilePath)
			}()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(runCtx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			listenErr := make(chan error, 1)
			telegramCfg := cfg.TelegramChannel()
			if telegramCfg.Enabled && strings.TrimSpace(telegramCfg.Token) != "" {
				telegram := channels.NewTelegram(telegramCfg.Token, telegramCfg.AllowedUsers)
				a.chat.RegisterSender(channels.TelegramChannel, telegram)
				go func() {
					listenErr <- telegram.Listen(runCtx, a.handler())
				}()
			}

			service := a.newScheduler()
			if err := service.Start(runCtx); err != nil {
				return err
			}

			var runErr error
			select {
			case <-runCtx.Done():
			case err := <-listenErr:
				if err != nil && !errors.Is(err, context.Canceled) {
					runErr = fmt.Errorf("telegram listener: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := service.Stop(shutdownCtx); err != nil {
				return errors.Join(runErr, err)
			}
			logging.Logger().Info("server stopped")
			return runErr
		},
	}
}
