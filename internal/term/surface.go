package term

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/gish-sh/gish/internal/session"
)

// DefaultEnv is set for every process started on a pseudo-terminal.
var DefaultEnv = []string{"TERM=xterm-256color"}

// ptyChild is a process running on a PTY.
type ptyChild struct {
	cmd  *exec.Cmd
	pty  PTY
	done chan struct{}

	mu   sync.Mutex
	code int
}

func (c *ptyChild) Pid() int              { return c.cmd.Process.Pid }
func (c *ptyChild) Done() <-chan struct{} { return c.done }

func (c *ptyChild) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *ptyChild) Kill() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	return killGroup(c.cmd.Process.Pid)
}

// start launches spec on a PTY and copies its output to out. done is closed
// after the process has exited and out has received everything.
func start(ctx context.Context, spec session.Spec, cols, rows uint16, out io.Writer) (*ptyChild, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(append(os.Environ(), DefaultEnv...), spec.Env...)

	p, err := StartPTY(cmd, cols, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Path, err)
	}

	c := &ptyChild{cmd: cmd, pty: p, done: make(chan struct{})}
	go c.wait(out)
	return c, nil
}

func (c *ptyChild) wait(out io.Writer) {
	defer close(c.done)

	// Reading the master fails with EIO once the child side is closed.
	_, _ = io.Copy(out, c.pty)
	_ = c.pty.Close()

	code := 0
	if err := c.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	c.mu.Lock()
	c.code = code
	c.mu.Unlock()
}

// PaneSurface runs status commands and captures their output in a Pane.
type PaneSurface struct {
	pane   *Pane
	cols   uint16
	rows   uint16
	logger *log.Logger
	gen    atomic.Uint64
}

// NewPaneSurface creates a surface writing into pane. cols and rows are the
// terminal size reported to the command.
func NewPaneSurface(pane *Pane, cols, rows uint16, logger *log.Logger) *PaneSurface {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &PaneSurface{pane: pane, cols: cols, rows: rows, logger: logger}
}

// Spawn starts spec on a new PTY. Output still draining from an earlier
// child is discarded from here on.
func (s *PaneSurface) Spawn(ctx context.Context, spec session.Spec) (session.Child, error) {
	out := &generationWriter{surface: s, gen: s.gen.Add(1)}
	c, err := start(ctx, spec, s.cols, s.rows, out)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("%s: pid %d on pty", spec.Role, c.Pid())
	return c, nil
}

// Clear empties the pane and detaches the current child's output.
func (s *PaneSurface) Clear() error {
	s.gen.Add(1)
	s.pane.Clear()
	return nil
}

// Pane returns the pane the surface writes into.
func (s *PaneSurface) Pane() *Pane {
	return s.pane
}

// generationWriter forwards to the pane only while its spawn is current.
type generationWriter struct {
	surface *PaneSurface
	gen     uint64
}

func (w *generationWriter) Write(b []byte) (int, error) {
	if w.surface.gen.Load() != w.gen {
		return len(b), nil
	}
	return w.surface.pane.Write(b)
}

var _ session.Surface = (*PaneSurface)(nil)
