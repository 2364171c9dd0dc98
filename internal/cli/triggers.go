package cli

import (
	"fmt"
	"strings"

	"github.com/neoclaw-ai/remindclaw/internal/chat"
	"github.com/neoclaw-ai/remindclaw/internal/command"
	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/spf13/cobra"
)

func newTriggersCmd() *cobra.Command {
	var identityID string

	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "List, add and delete triggers of one identity",
	}
	cmd.PersistentFlags().StringVar(&identityID, "identity", "", "Identity id (default bot.cli_identity)")

	withApp := func(cmd *cobra.Command, run func(a *app, id string) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		id := strings.TrimSpace(identityID)
		if id == "" {
			id = cfg.Bot.CLIIdentity
		}
		return run(a, id)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app, id string) error {
				triggers, err := a.chat.ListTriggers(cmd.Context(), id)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), chat.FormatTriggers(triggers))
				return err
			})
		},
	})

	var target string
	add := &cobra.Command{
		Use:   "add <date> <time> <request...>",
		Short: "Add a trigger from date and time expressions",
		Long: "Add a trigger. Date is everyday, today, tomorrow, \"day after tomorrow\" or YYYY-MM-DD; " +
			"time is HH:MM, now, or \"now +N mins\".",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, id string) error {
				ident, err := a.chat.Identity(cmd.Context(), id)
				if err != nil {
					return err
				}
				if t := strings.TrimSpace(target); t != "" {
					own := ident.Own()
					own.DeliveryTarget = strings.ToLower(t)
					ident.SetProfile(own)
				}
				fields := command.Fields{
					Date:    args[0],
					Time:    args[1],
					Request: strings.Join(args[2:], " "),
				}
				added, err := a.chat.AddTrigger(cmd.Context(), ident, fields)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Trigger added: %s\nid: %s\n", added.String(), added.ID)
				return err
			})
		},
	}
	add.Flags().StringVar(&target, "target", "", "Delivery target channel for the identity (telegram, cli)")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <trigger id>",
		Short: "Delete a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, id string) error {
				removed, ok, err := a.chat.DeleteTrigger(cmd.Context(), id, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no trigger with id %s for identity %s", args[0], id)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Trigger removed: "+removed.String())
				return err
			})
		},
	})

	return cmd
}
