package vcs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Repo locates a repository on disk.
type Repo struct {
	// Root is the top of the work tree holding the searched path.
	Root string
	// GitDir is the metadata directory. For a linked worktree it is the
	// per-worktree directory under the main repository's .git/worktrees.
	GitDir string
	// Linked is true for a worktree created with `git worktree add`.
	Linked bool
	// MainRoot is the work tree of the main repository; equal to Root
	// unless Linked.
	MainRoot string
}

// Find walks up from path to the nearest directory holding a .git entry.
// It only reads the filesystem; git.IsWorkTree is the authoritative check.
// Returns ErrNotInVCS when the filesystem root is reached.
func Find(path string) (*Repo, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	for {
		dotGit := filepath.Join(dir, ".git")
		info, err := os.Stat(dotGit)
		switch {
		case err == nil && info.IsDir():
			return &Repo{Root: dir, GitDir: dotGit, MainRoot: dir}, nil
		case err == nil:
			return linkedRepo(dir, dotGit)
		}

		up := filepath.Dir(dir)
		if up == dir {
			return nil, ErrNotInVCS
		}
		dir = up
	}
}

// linkedRepo reads a worktree's .git file ("gitdir: <path>").
func linkedRepo(root, dotGit string) (*Repo, error) {
	f, err := os.Open(dotGit)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dotGit, err)
	}
	defer f.Close()

	repo := &Repo{Root: root, GitDir: dotGit, MainRoot: root}

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return repo, nil
	}
	gitDir, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "gitdir:")
	if !ok {
		return repo, nil
	}
	gitDir = strings.TrimSpace(gitDir)
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(root, gitDir)
	}
	repo.GitDir = filepath.Clean(gitDir)

	// <main>/.git/worktrees/<name>
	if filepath.Base(filepath.Dir(repo.GitDir)) == "worktrees" {
		repo.Linked = true
		repo.MainRoot = filepath.Dir(filepath.Dir(filepath.Dir(repo.GitDir)))
	}
	return repo, nil
}
