package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	xterm "golang.org/x/term"

	"github.com/gish-sh/gish/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the gish configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write a commented config.toml holding every setting at its default value.

The file goes to --config if given, otherwise $XDG_CONFIG_HOME/gish/config.toml.
An existing file is only replaced after confirmation, or with --force.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}

		err := config.WriteDefault(path, force)
		if errors.Is(err, config.ErrExists) {
			ok, cerr := confirmOverwrite(path)
			if cerr != nil {
				return cerr
			}
			if !ok {
				fmt.Println("Kept existing configuration")
				return nil
			}
			err = config.WriteDefault(path, true)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration gish would run with: defaults, overlaid with the
config file and GISH_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, nil)
		if err != nil {
			return err
		}
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

// confirmOverwrite asks before replacing path. Without a terminal to ask
// on, the answer is no.
func confirmOverwrite(path string) (bool, error) {
	if !xterm.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Overwrite %s?", path)).
		Description("The current file will be replaced with the defaults.").
		Affirmative("Overwrite").
		Negative("Keep").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file without asking")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
