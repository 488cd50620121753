package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"
)

// DefaultSpawnTimeout bounds a single synchronous spawn.
const DefaultSpawnTimeout = 5 * time.Second

// EventKind classifies a session Event.
type EventKind string

const (
	EventSpawned EventKind = "session_spawned"
	EventFailed  EventKind = "session_failed"
	EventExited  EventKind = "session_exited"
)

// Event reports a session lifecycle change to observers such as the event
// feed and refresh history.
type Event struct {
	Kind     EventKind
	Session  *Session
	SpawnID  string
	Pid      int
	ExitCode int
	Err      error
	Time     time.Time
}

// Exit is a child exit notification, delivered on Orchestrator.Exits.
type Exit struct {
	Role    Role
	SpawnID string
	Code    int
}

// Result is the outcome of restarting one session.
type Result struct {
	Role       Role
	Invocation Invocation
	SpawnID    string
	Err        error
	Elapsed    time.Duration
}

// Config holds orchestrator configuration.
type Config struct {
	// Shell is the interpreter (see ResolveShell).
	Shell string
	// SpawnTimeout bounds each spawn (default: 5s).
	SpawnTimeout time.Duration
	// Env is added to the environment of command sessions.
	Env []string
	// Order is the restart order of the non-primary sessions. Roles that
	// were added but are not listed restart afterwards, in the order added.
	Order []Role
	// OnEvent is called on the control goroutine for every lifecycle event.
	OnEvent func(Event)
	// Logger for session messages.
	Logger *log.Logger
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() *Config {
	return &Config{
		Shell:        ResolveShell(""),
		SpawnTimeout: DefaultSpawnTimeout,
		Env:          []string{"PAGER=cat", "GIT_PAGER=cat"},
		Order:        []Role{RoleLog, RoleStatus, RoleBranch},
		Logger:       log.New(os.Stderr, "[session] ", log.LstdFlags),
	}
}

// Orchestrator owns the sessions.
type Orchestrator struct {
	shell   string
	timeout time.Duration
	env     []string
	order   []Role
	onEvent func(Event)
	logger  *log.Logger

	sessions map[Role]*Session
	added    []Role

	exits chan Exit
	done  chan struct{}
}

// NewOrchestrator creates an orchestrator. Missing config fields take
// their defaults.
func NewOrchestrator(cfg *Config) *Orchestrator {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	o := &Orchestrator{
		shell:    cfg.Shell,
		timeout:  cfg.SpawnTimeout,
		env:      cfg.Env,
		order:    cfg.Order,
		onEvent:  cfg.OnEvent,
		logger:   cfg.Logger,
		sessions: make(map[Role]*Session),
		exits:    make(chan Exit, 16),
		done:     make(chan struct{}),
	}
	if o.shell == "" {
		o.shell = def.Shell
	}
	if o.timeout <= 0 {
		o.timeout = def.SpawnTimeout
	}
	if o.order == nil {
		o.order = def.Order
	}
	if o.logger == nil {
		o.logger = def.Logger
	}
	return o
}

// Add creates a session for role drawing into surface.
func (o *Orchestrator) Add(role Role, label string, surface Surface) (*Session, error) {
	if _, ok := o.sessions[role]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRole, role)
	}
	s := &Session{Role: role, Label: label, orch: o, surface: surface}
	o.sessions[role] = s
	o.added = append(o.added, role)
	return s, nil
}

// Session returns the session for role, or nil.
func (o *Orchestrator) Session(role Role) *Session {
	return o.sessions[role]
}

// Primary returns the primary session, or nil.
func (o *Orchestrator) Primary() *Session {
	return o.sessions[RolePrimary]
}

// Shell returns the resolved interpreter.
func (o *Orchestrator) Shell() string {
	return o.shell
}

// Order returns the non-primary sessions in restart order.
func (o *Orchestrator) Order() []*Session {
	var out []*Session
	seen := make(map[Role]bool)
	for _, r := range o.order {
		if s, ok := o.sessions[r]; ok && r != RolePrimary && !seen[r] {
			out = append(out, s)
			seen[r] = true
		}
	}
	for _, r := range o.added {
		if r != RolePrimary && !seen[r] {
			out = append(out, o.sessions[r])
			seen[r] = true
		}
	}
	return out
}

// RestartAll restarts every non-primary session, one at a time, in Order.
// A failed session does not stop the others.
func (o *Orchestrator) RestartAll(ctx context.Context) []Result {
	sessions := o.Order()
	results := make([]Result, 0, len(sessions))
	for _, s := range sessions {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		inv, err := s.Restart(ctx)
		results = append(results, Result{
			Role:       s.Role,
			Invocation: inv,
			SpawnID:    s.spawnID,
			Err:        err,
			Elapsed:    time.Since(start),
		})
	}
	return results
}

// Exits delivers child exit notifications to the control loop.
func (o *Orchestrator) Exits() <-chan Exit {
	return o.exits
}

// HandleExit applies an exit notification. It reports whether the primary
// shell has exited. Notifications from replaced children are ignored.
func (o *Orchestrator) HandleExit(e Exit) bool {
	s, ok := o.sessions[e.Role]
	if !ok || s.spawnID != e.SpawnID || s.state != StateRunning {
		return false
	}

	s.child = nil
	s.exit = e.Code
	if s.Role == RolePrimary {
		s.state = StateTerminated
		o.logger.Printf("primary shell exited with code %d", e.Code)
	} else {
		s.state = StateExited
	}
	o.emit(Event{Kind: EventExited, Session: s, SpawnID: e.SpawnID, ExitCode: e.Code, Time: time.Now()})
	return s.Role == RolePrimary
}

// Close kills every running child and stops exit delivery.
func (o *Orchestrator) Close() {
	select {
	case <-o.done:
		return
	default:
	}
	close(o.done)
	for _, r := range o.added {
		o.sessions[r].teardown()
	}
}

func (o *Orchestrator) emit(e Event) {
	if o.onEvent != nil {
		o.onEvent(e)
	}
}

// startChild spawns on the surface, bounded by the spawn timeout. A child
// that starts after the deadline is killed.
func (o *Orchestrator) startChild(ctx context.Context, surface Surface, spec Spec) (Child, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type result struct {
		child Child
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := surface.Spawn(ctx, spec)
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		return r.child, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.child != nil {
				_ = r.child.Kill()
			}
		}()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %v", ErrSpawnTimeout, o.timeout)
		}
		return nil, ctx.Err()
	}
}

// observe forwards the child's exit to the control loop.
func (o *Orchestrator) observe(role Role, id string, child Child) {
	go func() {
		select {
		case <-child.Done():
		case <-o.done:
			return
		}
		select {
		case o.exits <- Exit{Role: role, SpawnID: id, Code: child.ExitCode()}:
		case <-o.done:
		}
	}()
}
