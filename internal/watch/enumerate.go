package watch

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// Entry is one filesystem entry produced by the Enumerator.
type Entry struct {
	// Path is the entry's path as reached from the root. Entries below a
	// followed symlink keep the link in their path.
	Path string
	// IsDir is true for directories, including symlinks to directories.
	IsDir bool
	// IsSymlink is true when Path itself is a symbolic link.
	IsSymlink bool
	// RealPath is the fully resolved path. Only set for directories.
	RealPath string
}

// Enumerator walks a root directory exactly once.
type Enumerator struct {
	root     string
	logger   *log.Logger
	consumed bool
	visited  map[string]bool
	skipped  int
}

// NewEnumerator creates an enumerator for root. A nil logger discards
// per-entry error reports.
func NewEnumerator(root string, logger *log.Logger) *Enumerator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Enumerator{
		root:    root,
		logger:  logger,
		visited: make(map[string]bool),
	}
}

// Walk calls fn for the root and every entry below it, depth first, in
// lexical order within a directory. Hidden entries are included and
// symbolic links are followed. A directory reached twice through links is
// yielded each time but descended into only once, which keeps link cycles
// finite.
//
// Errors on individual entries are logged and skipped. An error returned by
// fn stops the walk and is returned. Walk may only be called once.
func (e *Enumerator) Walk(fn func(Entry) error) error {
	if e.consumed {
		return ErrEnumeratorConsumed
	}
	e.consumed = true

	info, err := os.Stat(e.root)
	if err != nil {
		return fmt.Errorf("failed to stat root %s: %w", e.root, err)
	}
	if !info.IsDir() {
		return fn(Entry{Path: e.root})
	}

	return e.walkDir(e.root, false, fn)
}

// Skipped returns how many entries were skipped because of errors.
func (e *Enumerator) Skipped() int {
	return e.skipped
}

func (e *Enumerator) walkDir(dir string, isLink bool, fn func(Entry) error) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		e.skip(dir, err)
		return nil
	}

	if err := fn(Entry{Path: dir, IsDir: true, IsSymlink: isLink, RealPath: real}); err != nil {
		return err
	}

	if e.visited[real] {
		return nil
	}
	e.visited[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		e.skip(dir, err)
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, de := range entries {
		path := filepath.Join(dir, de.Name())
		link := de.Type()&os.ModeSymlink != 0

		// os.Stat follows links; a broken link fails here
		info, err := os.Stat(path)
		if err != nil {
			e.skip(path, err)
			continue
		}

		if info.IsDir() {
			if err := e.walkDir(path, link, fn); err != nil {
				return err
			}
			continue
		}

		if err := fn(Entry{Path: path, IsSymlink: link}); err != nil {
			return err
		}
	}

	return nil
}

func (e *Enumerator) skip(path string, err error) {
	e.skipped++
	e.logger.Printf("ERROR: skipping %s: %v", path, err)
}
