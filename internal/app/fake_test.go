package app

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gish-sh/gish/internal/history"
	"github.com/gish-sh/gish/internal/session"
	"github.com/gish-sh/gish/internal/watch"
)

type fakeChild struct {
	pid  int
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	code int
}

func (c *fakeChild) Pid() int              { return c.pid }
func (c *fakeChild) Done() <-chan struct{} { return c.done }

func (c *fakeChild) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *fakeChild) Kill() error {
	c.exit(-1)
	return nil
}

func (c *fakeChild) exit(code int) {
	c.once.Do(func() {
		c.mu.Lock()
		c.code = code
		c.mu.Unlock()
		close(c.done)
	})
}

type spawnCall struct {
	spec session.Spec
	at   time.Time
}

// fakeSurface records spawns; every spawn is also appended to the shared
// journal so tests can check the order across panes.
type fakeSurface struct {
	name    string
	journal *journal

	mu       sync.Mutex
	calls    []spawnCall
	children []*fakeChild
	failWith error
}

func newFakeSurface(name string, j *journal) *fakeSurface {
	return &fakeSurface{name: name, journal: j}
}

func (f *fakeSurface) Spawn(ctx context.Context, spec session.Spec) (session.Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spawnCall{spec: spec, at: time.Now()})
	if f.failWith != nil {
		return nil, f.failWith
	}
	c := &fakeChild{pid: 1000 + len(f.calls), done: make(chan struct{})}
	f.children = append(f.children, c)
	f.journal.add(f.name)
	return c, nil
}

func (f *fakeSurface) Clear() error { return nil }

func (f *fakeSurface) spawns() []spawnCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spawnCall(nil), f.calls...)
}

func (f *fakeSurface) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSurface) last() *fakeChild {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.children) == 0 {
		return nil
	}
	return f.children[len(f.children)-1]
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// fakeRecorder collects recorded cycles.
type fakeRecorder struct {
	mu     sync.Mutex
	cycles []history.Cycle
	err    error
}

func (r *fakeRecorder) Record(ctx context.Context, c *history.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, *c)
	return r.err
}

func (r *fakeRecorder) list() []history.Cycle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]history.Cycle(nil), r.cycles...)
}

// fakeObserver collects what the loop reports.
type fakeObserver struct {
	mu      sync.Mutex
	signals []watch.Signal
	events  []session.EventKind
}

func (o *fakeObserver) OnChange(sig watch.Signal) {
	o.mu.Lock()
	o.signals = append(o.signals, sig)
	o.mu.Unlock()
}

func (o *fakeObserver) OnSessionEvent(ev session.Event) {
	o.mu.Lock()
	o.events = append(o.events, ev.Kind)
	o.mu.Unlock()
}

func (o *fakeObserver) changes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.signals)
}

func (o *fakeObserver) kinds() []session.EventKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]session.EventKind(nil), o.events...)
}

var errBoom = errors.New("boom")

// rig is a primary shell plus the three default panes on fake surfaces.
type rig struct {
	journal *journal
	primary *fakeSurface
	log     *fakeSurface
	status  *fakeSurface
	branch  *fakeSurface
}

func newRig() *rig {
	j := &journal{}
	return &rig{
		journal: j,
		primary: newFakeSurface("primary", j),
		log:     newFakeSurface("log", j),
		status:  newFakeSurface("status", j),
		branch:  newFakeSurface("branch", j),
	}
}

func (r *rig) panes() []Pane {
	return []Pane{
		{Role: session.RoleLog, Label: "Git Log", Command: "git log", Surface: r.log},
		{Role: session.RoleStatus, Label: "Git Status", Command: "git status", Surface: r.status},
		{Role: session.RoleBranch, Label: "Git Branch", Command: "git branch", Surface: r.branch},
	}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testSessionConfig() *session.Config {
	return &session.Config{
		Shell:        "/bin/sh",
		SpawnTimeout: time.Second,
		Env:          []string{"PAGER=cat"},
		Order:        []session.Role{session.RoleLog, session.RoleStatus, session.RoleBranch},
		Logger:       testLogger(),
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
