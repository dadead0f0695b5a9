package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/claudebar/internal/cli"
	"github.com/janekbaraniewski/claudebar/internal/config"
	"github.com/janekbaraniewski/claudebar/internal/poller"
)

func newStatusCommand(cfg config.Config) *cobra.Command {
	var (
		line  bool
		width int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Poll once and print current usage",
		Long: `Poll once and print current usage.

With --line the output is a single plain-text line suitable for
status bars (tmux, SketchyBar, xbar).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 45*time.Second)
			defer cancel()

			state := app.newPoller().PollOnce(ctx)
			now := time.Now()

			if line {
				fmt.Println(cli.StatusLine(state, cfg.WarnThreshold, cfg.CritThreshold, now, width))
			} else {
				fmt.Print(cli.RenderStatus(state, cfg.WarnThreshold, cfg.CritThreshold, now))
			}

			if state.Status == poller.StatusError || state.Status == poller.StatusAuth {
				return fmt.Errorf("%s", state.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&line, "line", false, "print a single status-bar line")
	cmd.Flags().IntVar(&width, "width", 0, "truncate --line output to this many cells")
	return cmd
}
