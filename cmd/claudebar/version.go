package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/claudebar/internal/appupdate"
	"github.com/janekbaraniewski/claudebar/internal/version"
)

func newVersionCommand() *cobra.Command {
	var checkLatest bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println(version.String())
			if !checkLatest {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			result, err := appupdate.Check(ctx, appupdate.CheckOptions{
				CurrentVersion: version.Version,
			})
			if err != nil {
				return fmt.Errorf("update check: %w", err)
			}
			if result.UpdateAvailable {
				fmt.Printf("update available: %s\n  %s\n", result.LatestVersion, result.UpgradeHint)
			} else if result.LatestVersion != "" {
				fmt.Println("up to date")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkLatest, "check", false, "also query GitHub for the latest release")
	return cmd
}
