package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const launchdLabel = "com.janekbaraniewski.claudebar"

// newInstallCommand prints a launchd agent that keeps `claudebar
// status --line` sampling in the background, so status-bar hosts can
// read fresh output without each invocation paying for a network poll.
func newInstallCommand() *cobra.Command {
	var interval int

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Print a launchd plist for background polling",
		RunE: func(_ *cobra.Command, _ []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			if resolved, err := filepath.EvalSymlinks(exe); err == nil {
				exe = resolved
			}

			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("resolve home dir: %w", err)
			}
			plistPath := filepath.Join(home, "Library/LaunchAgents", launchdLabel+".plist")

			fmt.Printf("Save this to:\n  %s\n\n", plistPath)
			fmt.Printf(launchdPlist, launchdLabel, exe, interval)
			fmt.Printf("\nThen run:\n  launchctl load %s\n", plistPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&interval, "interval", 120, "seconds between background polls")
	return cmd
}

const launchdPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN"
  "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
        <string>%s</string>
        <string>status</string>
        <string>--line</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>StartInterval</key>
    <integer>%d</integer>
    <key>StandardOutPath</key>
    <string>/tmp/claudebar.log</string>
    <key>StandardErrorPath</key>
    <string>/tmp/claudebar.err</string>
</dict>
</plist>
`
