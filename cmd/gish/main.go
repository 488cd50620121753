package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

// exitError ends the process with a specific code and a bare message.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

var rootCmd = &cobra.Command{
	Use:   "gish [flags] PATH",
	Short: "Live git status panes next to your shell",
	Long: `gish opens an interactive shell in a git repository and keeps three
panes above it up to date: the commit log, the working tree status and the
branch list.

Every file change under PATH, including changes made from the shell, re-runs
the pane commands once the tree has been quiet for the configured window.

Example usage:
  gish .                           # Watch the current repository
  gish --quiet-window 500ms ~/src  # Refresh faster
  gish --feed-addr 127.0.0.1:7777 .  # Also publish events over WebSocket`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/gish/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Also write log output to stderr (watch mode)")
	addRunFlags(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
