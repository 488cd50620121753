package session

import "errors"

var (
	// ErrSpawn wraps any failure to start a session's process.
	ErrSpawn = errors.New("spawn failed")

	// ErrSpawnTimeout is returned when the surface does not start the
	// process within the spawn timeout.
	ErrSpawnTimeout = errors.New("spawn timed out")

	// ErrDuplicateRole is returned when adding a role twice.
	ErrDuplicateRole = errors.New("session role already added")

	// ErrNotPrimary is returned when SpawnShell is called on a status pane.
	ErrNotPrimary = errors.New("interactive shell only runs in the primary session")
)

// IsFatal reports whether err should stop the application. Only failures
// of the primary session are fatal; a status pane failure never is.
func IsFatal(role Role, err error) bool {
	return err != nil && role == RolePrimary
}
