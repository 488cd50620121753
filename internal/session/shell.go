package session

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveShell picks the interpreter: the configured value, then $SHELL,
// then a platform default.
func ResolveShell(configured string) string {
	if configured != "" {
		return configured
	}
	if runtime.GOOS == "windows" {
		return "powershell.exe"
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// CommandArgs returns the arguments that make shell run command and exit.
func CommandArgs(shell, command string) []string {
	base := strings.ToLower(filepath.Base(shell))
	base = strings.TrimSuffix(base, ".exe")
	switch base {
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command", command}
	case "cmd":
		return []string{"/C", command}
	default:
		return []string{"-c", command}
	}
}
