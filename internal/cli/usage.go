package cli

import (
	"fmt"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/spf13/cobra"
)

func newUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Print oracle spend for today and this month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			spend, err := a.usage.Spend(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "today: $%.4f (%d calls)%s\n", spend.TodayUSD, spend.TodayCalls, limitSuffix(cfg.Costs.DailyLimit)); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "month: $%.4f (%d calls)%s\n", spend.MonthUSD, spend.MonthCalls, limitSuffix(cfg.Costs.MonthlyLimit))
			return err
		},
	}
}

func limitSuffix(limit float64) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" of $%.2f", limit)
}
