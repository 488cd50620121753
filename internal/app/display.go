package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gish-sh/gish/internal/session"
	"github.com/gish-sh/gish/internal/term"
	"github.com/gish-sh/gish/internal/watch"
)

// frameInterval caps the redraw rate while output is streaming in.
const frameInterval = 33 * time.Millisecond

// DisplayPane is one pane drawn by a Display.
type DisplayPane struct {
	Role session.Role
	Pane *term.Pane
}

// Display redraws the pane area whenever pane output or session state
// changes. It is an Observer; its state is updated from the control loop and
// read by its own redraw goroutine.
type Display struct {
	renderer *term.Renderer
	size     func() (width, height int)
	draw     func(content string)
	panes    []DisplayPane

	mu     sync.Mutex
	status map[session.Role]term.View
	kick   chan struct{}
}

// NewDisplay creates a display. size reports the pane area; draw puts a
// rendered frame on screen.
func NewDisplay(renderer *term.Renderer, size func() (int, int), draw func(string), panes []DisplayPane) *Display {
	return &Display{
		renderer: renderer,
		size:     size,
		draw:     draw,
		panes:    panes,
		status:   make(map[session.Role]term.View),
		kick:     make(chan struct{}, 1),
	}
}

// OnChange implements Observer.
func (d *Display) OnChange(sig watch.Signal) {}

// OnSessionEvent records the pane's status line.
func (d *Display) OnSessionEvent(ev session.Event) {
	var v term.View
	switch ev.Kind {
	case session.EventFailed:
		v = term.View{Status: "failed to start", Failed: true}
	case session.EventExited:
		if ev.ExitCode != 0 {
			v = term.View{Status: fmt.Sprintf("exit %d", ev.ExitCode), Failed: true}
		}
	}

	d.mu.Lock()
	d.status[ev.Session.Role] = v
	d.mu.Unlock()
	d.Kick()
}

// Kick requests a redraw.
func (d *Display) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Frame renders the current state without drawing it.
func (d *Display) Frame() string {
	w, h := d.size()

	d.mu.Lock()
	views := make([]term.View, 0, len(d.panes))
	for _, p := range d.panes {
		v := d.status[p.Role]
		v.Pane = p.Pane
		views = append(views, v)
	}
	d.mu.Unlock()

	return d.renderer.Render(views, w, h)
}

// Run redraws until ctx is cancelled.
func (d *Display) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range d.panes {
		wg.Add(1)
		go func(p *term.Pane) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.Changed():
					d.Kick()
				}
			}
		}(p.Pane)
	}
	defer wg.Wait()

	d.draw(d.Frame())
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
		}
		d.draw(d.Frame())

		select {
		case <-ctx.Done():
			return
		case <-time.After(frameInterval):
		}
	}
}

var _ Observer = (*Display)(nil)
