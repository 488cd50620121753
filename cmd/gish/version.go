package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/gish-sh/gish/internal/vcs/git"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gish %s\n", version())
		if v, err := git.Version(context.Background()); err == nil {
			fmt.Printf("git  %s\n", v)
		} else {
			fmt.Printf("git  not found (%v)\n", err)
		}
	},
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
