package vcs

import "errors"

// Common errors returned by VCS operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // Handle case where we're outside any VCS repository
//	}
var (
	// ErrNotInVCS is returned when the operation requires being inside
	// a VCS repository but none was found.
	ErrNotInVCS = errors.New("not in a VCS repository")

	// ErrVCSNotAvailable is returned when the git binary is not installed
	// or not in PATH.
	ErrVCSNotAvailable = errors.New("VCS binary not available")

	// ErrVersionTooOld is returned when the installed git is older than
	// the minimum gish supports.
	ErrVersionTooOld = errors.New("VCS binary version too old")

	// ErrTimeout is returned when a VCS operation exceeds its timeout.
	ErrTimeout = errors.New("operation timed out")
)

// IsFatal returns true if the error means gish cannot start at all.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// Not in VCS means there is nothing to show
	if errors.Is(err, ErrNotInVCS) {
		return true
	}

	// Binary not available means the status views cannot run
	if errors.Is(err, ErrVCSNotAvailable) {
		return true
	}

	return false
}
