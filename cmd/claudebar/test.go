package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/claudebar/internal/config"
	"github.com/janekbaraniewski/claudebar/internal/profile"
)

// newTestCommand walks one full credential-to-usage cycle step by
// step, reporting each stage so login and keychain problems are easy
// to pin down.
func newTestCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check keychain access, token freshness and the usage endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 45*time.Second)
			defer cancel()

			prof, err := app.registry.Active()
			if err != nil {
				return fmt.Errorf("active profile: %w", err)
			}
			fmt.Printf("profile      %s (%s)\n", prof.ID, prof.Source)

			cred, err := app.store.Get(ctx, profile.CredentialKey(prof))
			if err != nil {
				fmt.Println("keychain     FAIL")
				return fmt.Errorf("keychain: %w", err)
			}
			fmt.Println("keychain     ok")
			if cred.ExpiresAt.IsZero() {
				fmt.Println("token        no expiry recorded, treated as stale")
			} else {
				fmt.Printf("token        expires %s\n", cred.ExpiresAt.Local().Format(time.RFC3339))
			}

			token, err := app.tokens.EnsureValidToken(ctx, prof)
			if err != nil {
				fmt.Println("refresh      FAIL")
				return fmt.Errorf("token refresh: %w", err)
			}
			fmt.Println("refresh      ok")

			snap, err := app.fetcher.Fetch(ctx, token)
			if err != nil {
				fmt.Println("usage fetch  FAIL")
				return fmt.Errorf("usage fetch: %w", err)
			}
			fmt.Println("usage fetch  ok")

			for _, lw := range snap.Windows() {
				fmt.Printf("  %-13s %5.1f%%\n", lw.Label, lw.Window.Utilization)
			}
			return nil
		},
	}
}
