package cli

import (
	"fmt"

	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var template bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print merged configuration as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if template {
				body, err := config.DefaultUserConfigTOML()
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			return config.Write(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&template, "template", false, "Print the first-run config template instead of the merged config")

	return cmd
}
