// Package app runs the control loop: it starts the watcher and the
// sessions, then re-runs the status panes on every change signal until the
// primary shell exits or the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/gish-sh/gish/internal/history"
	"github.com/gish-sh/gish/internal/session"
	"github.com/gish-sh/gish/internal/watch"
)

// ErrWatcherStopped is returned when the signal stream ends while the
// application is still running.
var ErrWatcherStopped = errors.New("watcher stopped")

// Pane is one status pane.
type Pane struct {
	Role    session.Role
	Label   string
	Command string
	Surface session.Surface
}

// Observer receives every change signal and session event, on the control
// goroutine.
type Observer interface {
	OnChange(sig watch.Signal)
	OnSessionEvent(ev session.Event)
}

// Recorder stores refresh cycles.
type Recorder interface {
	Record(ctx context.Context, c *history.Cycle) error
}

// Options configures an App.
type Options struct {
	// Root is the repository directory; every session runs there.
	Root string
	// Primary is the interactive shell surface. Nil runs headless: no
	// shell, and only cancellation ends Run.
	Primary session.Surface
	// Panes are the status panes, in the order they are created.
	Panes []Pane
	// Session configures the orchestrator. OnEvent is wrapped, not replaced.
	Session *session.Config
	// Watch configures the watcher. Root is overwritten with Options.Root.
	Watch *watch.Config
	// Signals replaces the watcher with an external signal source.
	Signals <-chan watch.Signal
	// Observers are notified of signals and session events.
	Observers []Observer
	// History records refresh cycles when set.
	History Recorder
	// Logger for control loop messages.
	Logger *log.Logger
}

// App is the running application.
type App struct {
	opts   Options
	orch   *session.Orchestrator
	logger *log.Logger
	cycles atomic.Int64
	stats  watch.Stats
}

// New creates an App. Nothing starts until Run.
func New(opts Options) (*App, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[app] ", log.LstdFlags)
	}
	if opts.Session == nil {
		opts.Session = session.DefaultConfig()
	}

	a := &App{opts: opts, logger: opts.Logger}

	cfg := *opts.Session
	inner := cfg.OnEvent
	cfg.OnEvent = func(ev session.Event) {
		if inner != nil {
			inner(ev)
		}
		for _, o := range a.opts.Observers {
			o.OnSessionEvent(ev)
		}
	}
	a.orch = session.NewOrchestrator(&cfg)

	if opts.Primary != nil {
		if _, err := a.orch.Add(session.RolePrimary, "Shell", opts.Primary); err != nil {
			return nil, err
		}
	}
	for _, p := range opts.Panes {
		if _, err := a.orch.Add(p.Role, p.Label, p.Surface); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Orchestrator exposes the session orchestrator, e.g. for rendering.
func (a *App) Orchestrator() *session.Orchestrator {
	return a.orch
}

// WatchStats returns the watcher's registration summary. It is zero when
// Options.Signals replaced the watcher or Run has not registered yet.
func (a *App) WatchStats() watch.Stats {
	return a.stats
}

// Cycles returns how many refresh cycles have run.
func (a *App) Cycles() int {
	return int(a.cycles.Load())
}

// Run starts everything and blocks. It returns nil when the primary shell
// exits or ctx is cancelled, and an error when startup fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.orch.Close()

	signals := a.opts.Signals
	if signals == nil {
		w, err := a.startWatcher(ctx)
		if err != nil {
			return err
		}
		defer func() {
			cancel()
			<-w.Done()
		}()
		a.stats = w.Stats()
		signals = w.Signals()
	}

	if primary := a.orch.Primary(); primary != nil {
		if err := primary.SpawnShell(ctx, a.opts.Root); session.IsFatal(primary.Role, err) {
			return fmt.Errorf("failed to start shell: %w", err)
		}
	}
	for _, p := range a.opts.Panes {
		// a failed pane is shown as failed and retried on the next change
		if err := a.orch.Session(p.Role).SpawnCommand(ctx, p.Command, a.opts.Root); session.IsFatal(p.Role, err) {
			return err
		}
	}

	return a.loop(ctx, signals)
}

func (a *App) startWatcher(ctx context.Context) (*watch.Watcher, error) {
	cfg := watch.DefaultConfig()
	if a.opts.Watch != nil {
		c := *a.opts.Watch
		cfg = &c
	}
	cfg.Root = a.opts.Root

	w, err := watch.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", a.opts.Root, err)
	}
	return w, nil
}

func (a *App) loop(ctx context.Context, signals <-chan watch.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case e := <-a.orch.Exits():
			if a.orch.HandleExit(e) {
				return nil
			}

		case sig, ok := <-signals:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrWatcherStopped
			}
			// an exit that is already queued wins over the signal
			if a.drainExits() {
				return nil
			}
			a.refresh(ctx, sig)
		}
	}
}

// drainExits applies queued exits and reports whether the primary exited.
func (a *App) drainExits() bool {
	for {
		select {
		case e := <-a.orch.Exits():
			if a.orch.HandleExit(e) {
				return true
			}
		default:
			return false
		}
	}
}

func (a *App) refresh(ctx context.Context, sig watch.Signal) {
	for _, o := range a.opts.Observers {
		o.OnChange(sig)
	}

	started := time.Now()
	results := a.orch.RestartAll(ctx)
	finished := time.Now()
	a.cycles.Add(1)

	failed := 0
	cycle := &history.Cycle{
		Seq:       sig.Seq,
		Root:      a.opts.Root,
		Triggered: sig.Trigger,
		Started:   started,
		Finished:  finished,
		Events:    sig.Events,
		Path:      sig.Path,
	}
	for _, r := range results {
		sp := history.Spawn{
			Role:    string(r.Role),
			SpawnID: r.SpawnID,
			Command: r.Invocation.Command,
			Dir:     r.Invocation.Dir,
			Elapsed: r.Elapsed,
		}
		if r.Err != nil {
			sp.Error = r.Err.Error()
			failed++
		}
		cycle.Spawns = append(cycle.Spawns, sp)
	}

	a.logger.Printf("refresh %d: %d pane(s), %d failed, %v after trigger",
		sig.Seq, len(results), failed, finished.Sub(sig.Trigger).Round(time.Millisecond))

	if a.opts.History != nil {
		if err := a.opts.History.Record(ctx, cycle); err != nil {
			a.logger.Printf("WARNING: failed to record refresh: %v", err)
		}
	}
}
