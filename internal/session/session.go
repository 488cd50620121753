package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role names a session slot.
type Role string

const (
	RolePrimary Role = "primary"
	RoleLog     Role = "log"
	RoleStatus  Role = "status"
	RoleBranch  Role = "branch"
)

// State is a session's lifecycle state.
type State int

const (
	// StateUninitialized means nothing has been spawned yet.
	StateUninitialized State = iota
	// StateRunning means the child process is alive.
	StateRunning
	// StateExited means the child exited on its own.
	StateExited
	// StateFailed means the last spawn failed. The invocation is kept.
	StateFailed
	// StateTerminated means the primary shell exited.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Invocation is what a session was last asked to run. An empty Command
// means the interactive shell.
type Invocation struct {
	Command string
	Dir     string
}

// IsZero reports whether no invocation was ever recorded.
func (i Invocation) IsZero() bool {
	return i == Invocation{}
}

// Session is one pane: a surface plus the process currently attached to it.
type Session struct {
	Role  Role
	Label string

	orch    *Orchestrator
	surface Surface

	inv         Invocation
	interactive bool
	spawned     bool

	child   Child
	spawnID string
	state   State
	err     error
	exit    int
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Err returns the last spawn error, or nil.
func (s *Session) Err() error { return s.err }

// Invocation returns the last recorded invocation.
func (s *Session) Invocation() Invocation { return s.inv }

// SpawnID returns the ID of the current (or last attempted) spawn.
func (s *Session) SpawnID() string { return s.spawnID }

// ExitCode returns the last child's exit code. Valid in StateExited.
func (s *Session) ExitCode() int { return s.exit }

// Surface returns the surface the session draws into.
func (s *Session) Surface() Surface { return s.surface }

// SpawnShell starts the interactive shell in dir. Only the primary session
// runs a shell; its exit ends the application.
func (s *Session) SpawnShell(ctx context.Context, dir string) error {
	if s.Role != RolePrimary {
		return ErrNotPrimary
	}
	s.inv = Invocation{Dir: dir}
	s.interactive = true
	s.spawned = true
	return s.spawn(ctx)
}

// SpawnCommand runs command through the shell in dir. The invocation is
// recorded before the spawn so a later Restart replays it even if this
// spawn fails.
func (s *Session) SpawnCommand(ctx context.Context, command, dir string) error {
	s.inv = Invocation{Command: command, Dir: dir}
	s.interactive = false
	s.spawned = true
	return s.spawn(ctx)
}

// Restart clears the surface and re-runs the last invocation verbatim. On a
// session that was never spawned it does nothing and returns the zero
// Invocation.
func (s *Session) Restart(ctx context.Context) (Invocation, error) {
	if !s.spawned {
		return Invocation{}, nil
	}
	if err := s.surface.Clear(); err != nil {
		s.orch.logger.Printf("WARNING: %s: failed to clear surface: %v", s.Role, err)
	}
	return s.inv, s.spawn(ctx)
}

func (s *Session) spawn(ctx context.Context) error {
	o := s.orch
	s.teardown()

	spec := Spec{
		ID:          uuid.NewString(),
		Role:        s.Role,
		Path:        o.shell,
		Dir:         s.inv.Dir,
		Interactive: s.interactive,
	}
	if !s.interactive {
		spec.Args = CommandArgs(o.shell, s.inv.Command)
		spec.Env = o.env
	}
	s.spawnID = spec.ID

	start := time.Now()
	child, err := o.startChild(ctx, s.surface, spec)
	if err != nil {
		s.state = StateFailed
		s.err = fmt.Errorf("%w: %s: %w", ErrSpawn, s.Role, err)
		o.logger.Printf("ERROR: %v", s.err)
		o.emit(Event{Kind: EventFailed, Session: s, SpawnID: spec.ID, Err: s.err, Time: time.Now()})
		return s.err
	}

	s.child = child
	s.state = StateRunning
	s.err = nil
	o.logger.Printf("%s: spawned pid %d in %v (%s)", s.Role, child.Pid(), time.Since(start).Round(time.Millisecond), s.describe())
	o.emit(Event{Kind: EventSpawned, Session: s, SpawnID: spec.ID, Pid: child.Pid(), Time: time.Now()})

	o.observe(s.Role, spec.ID, child)
	return nil
}

// teardown kills the current child. Its exit notification is ignored later
// because the spawn ID will no longer match.
func (s *Session) teardown() {
	if s.child == nil {
		return
	}
	if s.state == StateRunning {
		if err := s.child.Kill(); err != nil {
			s.orch.logger.Printf("WARNING: %s: failed to kill pid %d: %v", s.Role, s.child.Pid(), err)
		}
	}
	s.child = nil
}

func (s *Session) describe() string {
	if s.interactive {
		return "shell in " + s.inv.Dir
	}
	return fmt.Sprintf("%q in %s", s.inv.Command, s.inv.Dir)
}
