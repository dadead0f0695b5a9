package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/claudebar/internal/config"
)

func newHistoryCommand(cfg config.Config) *cobra.Command {
	var (
		limit     int
		profileID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded utilization samples",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if profileID == "" {
				app, err := newApp(cfg)
				if err != nil {
					return err
				}
				active, err := app.registry.Active()
				if err != nil {
					return err
				}
				profileID = active.ID
			}

			hist, err := openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			samples, err := hist.Recent(ctx, profileID, limit)
			if err != nil {
				return err
			}
			if len(samples) == 0 {
				fmt.Printf("no samples recorded for profile %s\n", profileID)
				return nil
			}

			fmt.Printf("%-20s %8s %8s %8s %8s\n", "SAMPLED", "5H", "7D", "7D-OPUS", "7D-SON")
			for _, s := range samples {
				fmt.Printf("%-20s %8s %8s %8s %8s\n",
					s.SampledAt.Local().Format("2006-01-02 15:04"),
					pct(s.FiveHour), pct(s.SevenDay),
					pct(s.SevenDayOpus), pct(s.SevenDaySonnet),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 48, "number of samples to show")
	cmd.Flags().StringVar(&profileID, "profile", "", "profile id (defaults to the active profile)")
	return cmd
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}
