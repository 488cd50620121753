package session

import "context"

// Spec describes one process to start on a Surface.
type Spec struct {
	// ID identifies this spawn in logs, the event feed and history.
	ID string
	// Role is the session the process belongs to.
	Role Role
	// Path is the program to run (the shell).
	Path string
	// Args are the program's arguments, excluding argv[0].
	Args []string
	// Dir is the working directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Interactive is true for the primary shell, which takes the host
	// terminal's input.
	Interactive bool
}

// Surface is a terminal area a session draws into.
type Surface interface {
	// Spawn starts spec attached to the surface. It returns once the
	// process is running; it does not wait for the process to exit.
	Spawn(ctx context.Context, spec Spec) (Child, error)
	// Clear erases what the previous process left on the surface.
	Clear() error
}

// Child is a running process started by a Surface.
type Child interface {
	Pid() int
	// Done is closed when the process has exited and its output is drained.
	Done() <-chan struct{}
	// ExitCode is valid after Done is closed; -1 if killed by a signal.
	ExitCode() int
	// Kill terminates the process. Killing an exited process is a no-op.
	Kill() error
}
