package term

import (
	"bytes"
	"strings"
	"sync"
)

// DefaultPaneLines is how many lines a Pane keeps.
const DefaultPaneLines = 1000

// Pane is a bounded buffer of process output. Writes come from a PTY reader
// goroutine; reads come from the renderer.
type Pane struct {
	Title string

	mu       sync.Mutex
	lines    []string
	partial  bytes.Buffer
	maxLines int
	changed  chan struct{}
}

// NewPane creates a pane keeping up to maxLines lines.
func NewPane(title string, maxLines int) *Pane {
	if maxLines <= 0 {
		maxLines = DefaultPaneLines
	}
	return &Pane{
		Title:    title,
		maxLines: maxLines,
		changed:  make(chan struct{}, 1),
	}
}

// Write appends output. Carriage returns are dropped so CRLF from the PTY
// line discipline becomes a plain newline.
func (p *Pane) Write(b []byte) (int, error) {
	p.mu.Lock()
	for _, c := range b {
		switch c {
		case '\r':
		case '\n':
			p.lines = append(p.lines, p.partial.String())
			p.partial.Reset()
		default:
			p.partial.WriteByte(c)
		}
	}
	if over := len(p.lines) - p.maxLines; over > 0 {
		p.lines = append(p.lines[:0], p.lines[over:]...)
	}
	p.mu.Unlock()

	p.notify()
	return len(b), nil
}

// Clear discards everything written so far.
func (p *Pane) Clear() {
	p.mu.Lock()
	p.lines = p.lines[:0]
	p.partial.Reset()
	p.mu.Unlock()
	p.notify()
}

// Lines returns the complete lines plus any unterminated trailing line.
func (p *Pane) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.lines), len(p.lines)+1)
	copy(out, p.lines)
	if p.partial.Len() > 0 {
		out = append(out, p.partial.String())
	}
	return out
}

// Tail returns at most n trailing lines.
func (p *Pane) Tail(n int) []string {
	lines := p.Lines()
	if n >= 0 && len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}

// Snapshot returns the pane content as one string.
func (p *Pane) Snapshot() string {
	return strings.Join(p.Lines(), "\n")
}

// Changed is signalled (coalesced) after every write or clear.
func (p *Pane) Changed() <-chan struct{} {
	return p.changed
}

func (p *Pane) notify() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}
