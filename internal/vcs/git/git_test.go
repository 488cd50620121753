package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/gish-sh/gish/internal/vcs"
)

func hasGit() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// setupTestRepo creates a temporary git repository for testing
func setupTestRepo(t *testing.T) string {
	t.Helper()

	if !hasGit() {
		t.Skip("git not installed")
	}

	tmpDir := t.TempDir()

	cmd := exec.Command("git", "init")
	cmd.Dir = tmpDir
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	return tmpDir
}

func TestIsWorkTree(t *testing.T) {
	repoPath := setupTestRepo(t)
	ctx := context.Background()

	ok, err := IsWorkTree(ctx, repoPath)
	if err != nil {
		t.Fatalf("IsWorkTree() failed: %v", err)
	}
	if !ok {
		t.Error("IsWorkTree() = false for a fresh repository, want true")
	}

	sub := filepath.Join(repoPath, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	if ok, _ := IsWorkTree(ctx, sub); !ok {
		t.Error("IsWorkTree() = false for a subdirectory, want true")
	}

	if ok, _ := IsWorkTree(ctx, filepath.Join(repoPath, ".git")); ok {
		t.Error("IsWorkTree() = true inside .git, want false")
	}
}

func TestIsWorkTreeOutsideRepo(t *testing.T) {
	if !hasGit() {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	if _, err := vcs.Find(dir); err == nil {
		t.Skip("temp dir is inside a repository")
	}

	ok, err := IsWorkTree(context.Background(), dir)
	if err != nil {
		t.Fatalf("IsWorkTree() failed: %v", err)
	}
	if ok {
		t.Error("IsWorkTree() = true outside a repository, want false")
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"git version 2.39.0", "v2.39.0", true},
		{"git version 2.39.3 (Apple Git-146)", "v2.39.3", true},
		{"git version 2.43.0.windows.1", "v2.43.0", true},
		{"git version 2.7", "v2.7.0", true},
		{"", "", false},
		{"git version banana", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseVersion(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseVersion(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCheckVersion(t *testing.T) {
	if !hasGit() {
		t.Skip("git not installed")
	}
	ctx := context.Background()

	if _, err := CheckVersion(ctx, MinVersion); err != nil {
		t.Errorf("CheckVersion(%s) failed: %v", MinVersion, err)
	}

	_, err := CheckVersion(ctx, "v999.0.0")
	if !errors.Is(err, vcs.ErrVersionTooOld) {
		t.Errorf("Expected ErrVersionTooOld, got %v", err)
	}
}
