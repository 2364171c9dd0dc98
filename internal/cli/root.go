// Package cli wires Cobra subcommands to application dependencies; it is a thin controller with no business logic.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/neoclaw-ai/remindclaw/internal/bootstrap"
	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/spf13/cobra"
)

// errFirstRun stops the command after first-run setup wrote a fresh config.
var errFirstRun = errors.New("first run setup complete")

// NewRootCmd creates the root command and registers all subcommands.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "remindclaw",
		Short: "remindclaw reminder bot",
		// Let main handle fatal error rendering through structured logs.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if verbose {
				logging.SetLevel(slog.LevelInfo)
			} else {
				logging.SetLevel(slog.LevelWarn)
			}

			// The config and version commands only print and should not
			// trigger bootstrap/first-run onboarding behavior.
			if cmd.Name() == "config" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			configPath := cfg.ConfigPath()
			firstRun := false
			if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
				firstRun = true
			} else if err != nil {
				return fmt.Errorf("stat remindclaw config file %q: %w", configPath, err)
			}

			if err := bootstrap.Initialize(cfg); err != nil {
				return err
			}

			if firstRun {
				if _, err := fmt.Fprintf(
					cmd.ErrOrStderr(),
					"First run setup complete.\nEdit config file: %s\nRestart remindclaw.\n",
					configPath,
				); err != nil {
					return err
				}
				return errFirstRun
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to `remindclaw start` when no subcommand is provided.
			startCmd, _, err := cmd.Find([]string{"start"})
			if err != nil {
				return err
			}
			startCmd.SetContext(cmd.Context())
			return startCmd.RunE(startCmd, args)
		},
	}

	root.AddCommand(newConfigCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newPromptCmd())
	root.AddCommand(newPollCmd())
	root.AddCommand(newTriggersCmd())
	root.AddCommand(newUsageCmd())
	root.AddCommand(newVersionCmd())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (info level)")

	return root
}

// IsFirstRun reports whether err only signals completed first-run setup.
func IsFirstRun(err error) bool {
	return errors.Is(err, errFirstRun)
}
