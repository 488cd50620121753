// Package config loads gish configuration.
//
// Values are layered with viper: built-in defaults, then the config file
// ($XDG_CONFIG_HOME/gish/config.toml unless --config is given), then
// GISH_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default session commands.
const (
	DefaultLogCommand    = "git log --reverse --pretty=format:'%Cred%h%Creset -%C(yellow)%d%Creset %s %Cgreen(%cr) %C(bold blue)<%an>%Creset' --abbrev-commit"
	DefaultStatusCommand = "git status --short"
	DefaultBranchCommand = "git branch -a"
)

// Role names accepted in refresh_order.
const (
	RoleLog    = "log"
	RoleStatus = "status"
	RoleBranch = "branch"
)

// Config is the effective gish configuration.
type Config struct {
	QuietWindow        time.Duration `mapstructure:"quiet_window"`
	DebounceMode       string        `mapstructure:"debounce_mode"`
	WatchStrategy      string        `mapstructure:"watch_strategy"`
	RegistrationPolicy string        `mapstructure:"registration_policy"`
	Shell              string        `mapstructure:"shell"`
	SpawnTimeout       time.Duration `mapstructure:"spawn_timeout"`
	Sessions           Sessions      `mapstructure:"sessions"`
	SessionEnv         []string      `mapstructure:"session_env"`
	RefreshOrder       []string      `mapstructure:"refresh_order"`
	Log                Log           `mapstructure:"log"`
	Feed               Feed          `mapstructure:"feed"`
	History            History       `mapstructure:"history"`
}

// Sessions holds the command run by each status pane.
type Sessions struct {
	Log    string `mapstructure:"log"`
	Status string `mapstructure:"status"`
	Branch string `mapstructure:"branch"`
}

// Command returns the command for role.
func (s Sessions) Command(role string) string {
	switch role {
	case RoleLog:
		return s.Log
	case RoleStatus:
		return s.Status
	case RoleBranch:
		return s.Branch
	default:
		return ""
	}
}

// Log configures the rotating log file.
type Log struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Feed configures the websocket event feed.
type Feed struct {
	Addr string `mapstructure:"addr"`
}

// History configures the refresh history database.
type History struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"quiet-window":        "quiet_window",
	"debounce-mode":       "debounce_mode",
	"watch-strategy":      "watch_strategy",
	"registration-policy": "registration_policy",
	"shell":               "shell",
	"spawn-timeout":       "spawn_timeout",
	"feed-addr":           "feed.addr",
	"log-file":            "log.file",
}

// Dir returns the directory holding config.toml.
func Dir() string {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return filepath.Join(d, "gish")
	}
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "gish")
	}
	return filepath.Join(".", ".gish")
}

// StateDir returns the directory for logs and history.
func StateDir() string {
	if d := os.Getenv("XDG_STATE_HOME"); d != "" {
		return filepath.Join(d, "gish")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "gish")
	}
	return filepath.Join(os.TempDir(), "gish")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("quiet_window", "1s")
	v.SetDefault("debounce_mode", "fixed")
	v.SetDefault("watch_strategy", "recursive")
	v.SetDefault("registration_policy", "fail")
	v.SetDefault("shell", "")
	v.SetDefault("spawn_timeout", "5s")
	v.SetDefault("sessions.log", DefaultLogCommand)
	v.SetDefault("sessions.status", DefaultStatusCommand)
	v.SetDefault("sessions.branch", DefaultBranchCommand)
	v.SetDefault("session_env", []string{"PAGER=cat", "GIT_PAGER=cat"})
	v.SetDefault("refresh_order", []string{RoleLog, RoleStatus, RoleBranch})
	v.SetDefault("log.file", filepath.Join(StateDir(), "gish.log"))
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("feed.addr", "")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(StateDir(), "history.db"))
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &c
}

// Load builds the effective configuration. An explicit path must exist; the
// default path may be absent. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(Dir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
		if f := flags.Lookup("no-history"); f != nil && f.Value.String() == "true" {
			v.Set("history.enabled", false)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate rejects unknown enum values and non-positive durations.
func (c *Config) Validate() error {
	if c.QuietWindow <= 0 {
		return fmt.Errorf("%w: quiet_window must be positive, got %v", ErrInvalid, c.QuietWindow)
	}
	if c.SpawnTimeout <= 0 {
		return fmt.Errorf("%w: spawn_timeout must be positive, got %v", ErrInvalid, c.SpawnTimeout)
	}
	if err := oneOf("debounce_mode", c.DebounceMode, "fixed", "sliding"); err != nil {
		return err
	}
	if err := oneOf("watch_strategy", c.WatchStrategy, "recursive", "per-entry"); err != nil {
		return err
	}
	if err := oneOf("registration_policy", c.RegistrationPolicy, "fail", "skip"); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, role := range c.RefreshOrder {
		if err := oneOf("refresh_order", role, RoleLog, RoleStatus, RoleBranch); err != nil {
			return err
		}
		if seen[role] {
			return fmt.Errorf("%w: refresh_order lists %q twice", ErrInvalid, role)
		}
		seen[role] = true
	}

	for _, kv := range c.SessionEnv {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("%w: session_env entry %q is not KEY=VALUE", ErrInvalid, kv)
		}
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalid, key, strings.Join(allowed, ", "), value)
}
