package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecResult holds both output streams of a finished command. The work tree
// check needs stderr separately: git prints nothing to stderr when the
// directory is inside a work tree.
type ExecResult struct {
	Stdout []byte
	Stderr []byte
}

// ExecContext executes a VCS command with timeout and context support.
//
// Example:
//
//	res, err := ExecContext(ctx, 30*time.Second, repoRoot, "git", "status", "--porcelain")
func ExecContext(ctx context.Context, timeout time.Duration, workDir string, name string, args ...string) (*ExecResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ErrTimeout)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return res, fmt.Errorf("%s: %w", name, ErrVCSNotAvailable)
		}
		// Include stderr in error message for debugging
		if stderr.Len() > 0 {
			return res, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return res, err
	}

	return res, nil
}

// TrimOutput trims whitespace and trailing newlines from command output.
func TrimOutput(output []byte) string {
	return strings.TrimSpace(string(output))
}

// IsExitError returns true if the error is an exit error with non-zero status.
func IsExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
