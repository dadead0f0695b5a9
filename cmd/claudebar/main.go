package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/claudebar/internal/config"
)

func main() {
	if os.Getenv("CLAUDEBAR_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:   "claudebar",
		Short: "claudebar shows Claude subscription usage in your terminal or status bar.",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			return runDashboard(app)
		},
	}

	root.AddCommand(
		newStatusCommand(cfg),
		newTestCommand(cfg),
		newProfileCommand(cfg),
		newHistoryCommand(cfg),
		newInstallCommand(),
		newVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
