package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrExists is returned by WriteDefault when the target exists and
// overwrite is false.
var ErrExists = errors.New("config file already exists")

// document is the on-disk shape. Durations are strings so the file stays
// readable ("1s", not 1000000000).
type document struct {
	QuietWindow        string      `toml:"quiet_window" yaml:"quiet_window"`
	DebounceMode       string      `toml:"debounce_mode" yaml:"debounce_mode"`
	WatchStrategy      string      `toml:"watch_strategy" yaml:"watch_strategy"`
	RegistrationPolicy string      `toml:"registration_policy" yaml:"registration_policy"`
	Shell              string      `toml:"shell" yaml:"shell"`
	SpawnTimeout       string      `toml:"spawn_timeout" yaml:"spawn_timeout"`
	SessionEnv         []string    `toml:"session_env" yaml:"session_env"`
	RefreshOrder       []string    `toml:"refresh_order" yaml:"refresh_order"`
	Sessions           sessionsDoc `toml:"sessions" yaml:"sessions"`
	Log                logDoc      `toml:"log" yaml:"log"`
	Feed               feedDoc     `toml:"feed" yaml:"feed"`
	History            historyDoc  `toml:"history" yaml:"history"`
}

type sessionsDoc struct {
	Log    string `toml:"log" yaml:"log"`
	Status string `toml:"status" yaml:"status"`
	Branch string `toml:"branch" yaml:"branch"`
}

type logDoc struct {
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
}

type feedDoc struct {
	Addr string `toml:"addr" yaml:"addr"`
}

type historyDoc struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

func (c *Config) document() document {
	return document{
		QuietWindow:        c.QuietWindow.String(),
		DebounceMode:       c.DebounceMode,
		WatchStrategy:      c.WatchStrategy,
		RegistrationPolicy: c.RegistrationPolicy,
		Shell:              c.Shell,
		SpawnTimeout:       c.SpawnTimeout.String(),
		SessionEnv:         c.SessionEnv,
		RefreshOrder:       c.RefreshOrder,
		Sessions:           sessionsDoc(c.Sessions),
		Log:                logDoc(c.Log),
		Feed:               feedDoc(c.Feed),
		History:            historyDoc(c.History),
	}
}

const header = `# gish configuration
#
# quiet_window        minimum time between two refreshes
# debounce_mode       "fixed" (refresh one window after the first change)
#                     or "sliding" (refresh once changes stop for a window)
# watch_strategy      "recursive" or "per-entry"
# registration_policy "fail" aborts startup when a path cannot be watched,
#                     "skip" logs it and carries on
# shell               interpreter for sessions; empty means $SHELL
# refresh_order       order in which the status panes are re-run
#
# Every key can be overridden with a GISH_ environment variable, for example
# GISH_QUIET_WINDOW=500ms or GISH_FEED_ADDR=127.0.0.1:7777.

`

// EncodeTOML writes c as a commented TOML document.
func (c *Config) EncodeTOML(w io.Writer) error {
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return toml.NewEncoder(w).Encode(c.document())
}

// YAML returns c as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.document())
}

// WriteDefault writes the built-in configuration to path, creating parent
// directories.
func WriteDefault(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := Default().EncodeTOML(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}
