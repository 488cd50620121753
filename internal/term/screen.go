package term

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	xterm "golang.org/x/term"
)

// minShellRows is the smallest shell area worth running.
const minShellRows = 3

// Screen is the host terminal split into a pane area on top and a shell
// area below. The shell area is a scroll region, so shell output never
// overwrites the panes.
type Screen struct {
	in  *os.File
	out io.Writer

	mu       sync.Mutex
	oldState *xterm.State
	width    int
	height   int
	paneRows int
}

// OpenScreen puts the host terminal into raw mode and reserves paneRows
// rows at the top.
func OpenScreen(in *os.File, out io.Writer, paneRows int) (*Screen, error) {
	fd := int(in.Fd())
	if !xterm.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}

	s := &Screen{in: in, out: out, paneRows: paneRows}
	if err := s.readSize(); err != nil {
		return nil, err
	}

	state, err := xterm.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}
	s.oldState = state

	s.mu.Lock()
	s.layout(true)
	s.mu.Unlock()
	return s, nil
}

func (s *Screen) readSize() error {
	w, h, err := xterm.GetSize(int(s.in.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read terminal size: %w", err)
	}
	if h < s.paneRows+minShellRows {
		return fmt.Errorf("%w: %d rows, need at least %d", ErrScreenTooSmall, h, s.paneRows+minShellRows)
	}
	s.mu.Lock()
	s.width, s.height = w, h
	s.mu.Unlock()
	return nil
}

// layout sets the scroll region. Caller holds mu.
func (s *Screen) layout(clear bool) {
	var buf bytes.Buffer
	o := termenv.NewOutput(&buf)
	if clear {
		o.ClearScreen()
	}
	o.ChangeScrollingRegion(s.paneRows+1, s.height)
	o.MoveCursor(s.height, 1)
	_, _ = s.out.Write(buf.Bytes())
}

// Resize re-reads the terminal size and re-applies the layout.
func (s *Screen) Resize() error {
	if err := s.readSize(); err != nil {
		return err
	}
	s.mu.Lock()
	s.layout(false)
	s.mu.Unlock()
	return nil
}

// PaneArea returns the size of the area above the shell.
func (s *Screen) PaneArea() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.paneRows
}

// ShellSize returns the size of the shell area.
func (s *Screen) ShellSize() (cols, rows uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint16(s.width), uint16(s.height - s.paneRows)
}

// Writer returns a writer for shell output. Writes are serialised with
// pane drawing.
func (s *Screen) Writer() io.Writer {
	return screenWriter{s}
}

type screenWriter struct{ s *Screen }

func (w screenWriter) Write(b []byte) (int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.out.Write(b)
}

// DrawPanes paints content into the pane area without moving the shell's
// cursor.
func (s *Screen) DrawPanes(content string) {
	lines := strings.Split(content, "\n")

	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	o := termenv.NewOutput(&buf)
	o.SaveCursorPosition()
	for row := 0; row < s.paneRows; row++ {
		o.MoveCursor(row+1, 1)
		o.ClearLine()
		if row < len(lines) {
			buf.WriteString(lines[row])
		}
	}
	o.RestoreCursorPosition()
	_, _ = s.out.Write(buf.Bytes())
}

// ClearShell erases the shell area.
func (s *Screen) ClearShell() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	o := termenv.NewOutput(&buf)
	for row := s.paneRows + 1; row <= s.height; row++ {
		o.MoveCursor(row, 1)
		o.ClearLine()
	}
	o.MoveCursor(s.paneRows+1, 1)
	_, _ = s.out.Write(buf.Bytes())
}

// Close restores the terminal.
func (s *Screen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	o := termenv.NewOutput(&buf)
	o.ChangeScrollingRegion(1, s.height)
	o.MoveCursor(s.height, 1)
	buf.WriteString("\r\n")
	_, _ = s.out.Write(buf.Bytes())

	if s.oldState == nil {
		return nil
	}
	err := xterm.Restore(int(s.in.Fd()), s.oldState)
	s.oldState = nil
	return err
}
