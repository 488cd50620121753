// Package vcs answers the one question gish asks of version control before it
// starts: is the directory the user pointed at inside a working tree?
//
// The status views themselves run opaque git commands through the session
// layer; this package only covers repository discovery and the startup
// precondition.
//
// # Usage
//
//	repo, err := vcs.Find(path)
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // not a repository
//	}
//	fmt.Println("repository root:", repo.Root)
//
// # Implementations
//
//   - internal/vcs/git: work tree check and git version gate
package vcs
