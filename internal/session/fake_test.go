package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"
)

// fakeChild is a controllable Child.
type fakeChild struct {
	pid    int
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	code   int
	killed bool
}

func newFakeChild(pid int) *fakeChild {
	return &fakeChild{pid: pid, done: make(chan struct{})}
}

func (c *fakeChild) Pid() int              { return c.pid }
func (c *fakeChild) Done() <-chan struct{} { return c.done }

func (c *fakeChild) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *fakeChild) Kill() error {
	c.mu.Lock()
	c.killed = true
	c.code = -1
	c.mu.Unlock()
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

func (c *fakeChild) wasKilled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.killed
}

// spawnCall records one Spawn.
type spawnCall struct {
	spec Spec
	at   time.Time
}

// fakeSurface records spawns and clears. Calls from every surface are also
// appended to a shared journal so tests can check cross-session order.
type fakeSurface struct {
	name    string
	journal *journal

	mu       sync.Mutex
	calls    []spawnCall
	children []*fakeChild
	clears   int
	failNext error
	delay    time.Duration
	nextPid  int
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func newFakeSurface(name string, j *journal) *fakeSurface {
	return &fakeSurface{name: name, journal: j, nextPid: 100}
}

func (f *fakeSurface) Spawn(ctx context.Context, spec Spec) (Child, error) {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spawnCall{spec: spec, at: time.Now()})
	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	f.nextPid++
	c := newFakeChild(f.nextPid)
	f.children = append(f.children, c)
	f.journal.add("spawn:" + f.name)
	return c, nil
}

func (f *fakeSurface) Clear() error {
	f.mu.Lock()
	f.clears++
	f.mu.Unlock()
	f.journal.add("clear:" + f.name)
	return nil
}

func (f *fakeSurface) spawns() []spawnCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spawnCall(nil), f.calls...)
}

func (f *fakeSurface) child(i int) *fakeChild {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.children[i]
}

func (f *fakeSurface) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

var errBoom = errors.New("boom")

func testConfig() *Config {
	return &Config{
		Shell:        "/bin/sh",
		SpawnTimeout: time.Second,
		Env:          []string{"PAGER=cat", "GIT_PAGER=cat"},
		Order:        []Role{RoleLog, RoleStatus, RoleBranch},
		Logger:       log.New(io.Discard, "", 0),
	}
}
