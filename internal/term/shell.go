package term

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/gish-sh/gish/internal/session"
)

// ShellSurface runs the interactive shell in the Screen's shell area and
// forwards host input to it.
type ShellSurface struct {
	screen *Screen
	in     io.Reader
	logger *log.Logger

	mu      sync.Mutex
	current PTY
	pumping bool
}

// NewShellSurface creates the primary surface. in is normally os.Stdin.
func NewShellSurface(screen *Screen, in io.Reader, logger *log.Logger) *ShellSurface {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ShellSurface{screen: screen, in: in, logger: logger}
}

// Spawn starts the shell on a PTY sized to the shell area.
func (s *ShellSurface) Spawn(ctx context.Context, spec session.Spec) (session.Child, error) {
	cols, rows := s.screen.ShellSize()
	c, err := start(ctx, spec, cols, rows, s.screen.Writer())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = c.pty
	if !s.pumping {
		s.pumping = true
		go s.pump()
	}
	s.mu.Unlock()
	return c, nil
}

// Clear erases the shell area.
func (s *ShellSurface) Clear() error {
	s.screen.ClearShell()
	return nil
}

// Resize propagates the shell area size to the running shell.
func (s *ShellSurface) Resize() error {
	s.mu.Lock()
	p := s.current
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Resize(s.screen.ShellSize())
}

// pump copies host input to whichever shell is current. It runs until the
// input is closed.
func (s *ShellSurface) pump() {
	buf := make([]byte, 1024)
	for {
		n, err := s.in.Read(buf)
		if n > 0 {
			s.mu.Lock()
			p := s.current
			s.mu.Unlock()
			if p != nil {
				if _, werr := p.Write(buf[:n]); werr != nil {
					s.logger.Printf("WARNING: shell input: %v", werr)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

var _ session.Surface = (*ShellSurface)(nil)
