package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/claudebar/internal/config"
)

func newProfileCommand(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved credential profiles",
		Long: `Manage saved credential profiles.

The "auto" profile always reads the live Claude Code keychain entry.
Added profiles are point-in-time copies of that entry, stored under
separate keychain items, so you can keep polling one account while
logged into another.`,
	}

	cmd.AddCommand(
		newProfileListCommand(cfg),
		newProfileAddCommand(cfg),
		newProfileUseCommand(cfg),
		newProfileRemoveCommand(cfg),
		newProfileRefreshCommand(cfg),
	)
	return cmd
}

func profileCtx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 15*time.Second)
}

func newProfileListCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			profiles, err := app.registry.List()
			if err != nil {
				return err
			}
			active, err := app.registry.Active()
			if err != nil {
				return err
			}
			for _, p := range profiles {
				marker := " "
				if p.ID == active.ID {
					marker = "*"
				}
				plan := p.Plan
				if plan == "" {
					plan = "-"
				}
				fmt.Printf("%s %-16s %-8s %-10s %s\n", marker, p.ID, p.Source, plan, p.Label)
			}
			return nil
		},
	}
}

func newProfileAddCommand(cfg config.Config) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Snapshot the current login as a new profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := profileCtx(cmd)
			defer cancel()

			p, err := app.registry.Add(ctx, args[0], label)
			if err != nil {
				return err
			}
			fmt.Printf("added profile %s (%s)\n", p.ID, p.Label)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "display label (defaults to the id)")
	return cmd
}

func newProfileUseCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a profile the polling target",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			if err := app.registry.SetActive(args[0]); err != nil {
				return err
			}
			fmt.Printf("active profile is now %s\n", args[0])
			return nil
		},
	}
}

func newProfileRemoveCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a profile and its stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := profileCtx(cmd)
			defer cancel()

			if err := app.registry.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("removed profile %s\n", args[0])
			return nil
		},
	}
}

func newProfileRefreshCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <id>",
		Short: "Re-snapshot a profile from the current login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := profileCtx(cmd)
			defer cancel()

			p, err := app.registry.Refresh(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("refreshed profile %s from the live login\n", p.ID)
			return nil
		},
	}
}
