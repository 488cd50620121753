// Package git implements the startup checks gish runs against a git
// repository and holds the default status view commands.
package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/gish-sh/gish/internal/vcs"
)

// Default commands for the three status views. They are opaque to the
// session layer and can be overridden in the config file.
const (
	LogCommand    = "git log --reverse --pretty=format:'%Cred%h%Creset -%C(yellow)%d%Creset %s %Cgreen(%cr) %C(bold blue)<%an>%Creset' --abbrev-commit"
	StatusCommand = "git status --short"
	BranchCommand = "git branch -a"
)

// MinVersion is the oldest git whose `status --short` and `branch -a`
// output the views expect.
const MinVersion = "v2.0.0"

// checkTimeout bounds each startup probe.
const checkTimeout = 10 * time.Second

// IsWorkTree reports whether dir is inside a git work tree.
//
// The check is the one the status views depend on: `git rev-parse
// --is-inside-work-tree` run in dir. git writes to stderr when dir is not
// part of a repository, so any stderr output means "no".
func IsWorkTree(ctx context.Context, dir string) (bool, error) {
	res, err := vcs.ExecContext(ctx, checkTimeout, dir, "git", "rev-parse", "--is-inside-work-tree")
	if err != nil {
		if vcs.IsExitError(err) {
			return false, nil
		}
		return false, err
	}
	if len(res.Stderr) > 0 {
		return false, nil
	}
	// "false" is printed from inside a .git directory
	return vcs.TrimOutput(res.Stdout) == "true", nil
}

// Version returns the installed git version as a semver string ("v2.43.0").
func Version(ctx context.Context) (string, error) {
	res, err := vcs.ExecContext(ctx, checkTimeout, "", "git", "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get git version: %w", err)
	}

	v, ok := ParseVersion(vcs.TrimOutput(res.Stdout))
	if !ok {
		return "", fmt.Errorf("unrecognized git version output %q", vcs.TrimOutput(res.Stdout))
	}
	return v, nil
}

// ParseVersion turns `git --version` output into a canonical semver string.
// Vendor suffixes are dropped: "git version 2.39.3 (Apple Git-146)" and
// "git version 2.43.0.windows.1" become "v2.39.3" and "v2.43.0".
func ParseVersion(output string) (string, bool) {
	fields := strings.Fields(strings.TrimPrefix(output, "git version "))
	if len(fields) == 0 {
		return "", false
	}

	parts := strings.Split(fields[0], ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v := semver.Canonical("v" + strings.Join(parts, "."))
	return v, v != ""
}

// CheckVersion returns vcs.ErrVersionTooOld when the installed git is older
// than min.
func CheckVersion(ctx context.Context, min string) (string, error) {
	v, err := Version(ctx)
	if err != nil {
		return "", err
	}
	if semver.Compare(v, min) < 0 {
		return v, fmt.Errorf("git %s < %s: %w", v, min, vcs.ErrVersionTooOld)
	}
	return v, nil
}
