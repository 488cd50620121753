package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Strategy selects the Notifier backend and how entries are registered.
type Strategy string

const (
	// StrategyRecursive places one recursive watch on the root.
	StrategyRecursive Strategy = "recursive"
	// StrategyPerEntry places one non-recursive watch per enumerated entry.
	StrategyPerEntry Strategy = "per-entry"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRecursive, StrategyPerEntry:
		return Strategy(s), nil
	case "":
		return StrategyRecursive, nil
	default:
		return "", fmt.Errorf("unknown watch strategy %q (want recursive or per-entry)", s)
	}
}

// Config holds watcher configuration.
type Config struct {
	// Root is the directory to watch.
	Root string
	// Strategy selects the backend (default: recursive).
	Strategy Strategy
	// Policy decides what a failed registration does (default: fail).
	Policy Policy
	// QuietWindow is the minimum spacing between signals (default: 1s).
	QuietWindow time.Duration
	// Mode selects fixed or sliding debounce (default: fixed).
	Mode Mode
	// Logger for watcher and debouncer messages.
	Logger *log.Logger
	// NewNotifier overrides backend construction. Used by tests.
	NewNotifier func(Strategy) (Notifier, error)
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() *Config {
	return &Config{
		Strategy:    StrategyRecursive,
		Policy:      PolicyFail,
		QuietWindow: DefaultQuietWindow,
		Mode:        ModeFixed,
		Logger:      log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Stats summarises the startup registration pass.
type Stats struct {
	Entries  int
	Targets  int
	Skipped  int
	Strategy Strategy
	Elapsed  time.Duration
}

// Watcher watches a root and emits debounced change signals.
type Watcher struct {
	config    *Config
	debouncer *Debouncer

	mu      sync.Mutex
	started bool
	stats   Stats
	done    chan struct{}
}

// New creates a watcher. Missing config fields take their defaults.
func New(cfg *Config) (*Watcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.Root == "" {
		return nil, fmt.Errorf("watch root is required")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = def.QuietWindow
	}
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.NewNotifier == nil {
		cfg.NewNotifier = defaultNotifier
	}

	return &Watcher{
		config: cfg,
		debouncer: NewDebouncer(DebounceConfig{
			Window: cfg.QuietWindow,
			Mode:   cfg.Mode,
			Logger: cfg.Logger,
		}),
		done: make(chan struct{}),
	}, nil
}

func defaultNotifier(s Strategy) (Notifier, error) {
	switch s {
	case StrategyPerEntry:
		return NewFSNotifier()
	case StrategyRecursive:
		return NewRecursiveNotifier(), nil
	default:
		return nil, fmt.Errorf("unknown watch strategy %q", s)
	}
}

// Start launches the watcher goroutine and waits for it to finish the
// registration pass. A registration failure under PolicyFail is returned
// here and the goroutine exits. Cancelling ctx stops the watcher and
// closes Signals.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.started = true
	w.mu.Unlock()

	ready := make(chan error, 1)
	go w.run(ctx, ready)
	return <-ready
}

// Signals returns the debounced signal stream.
func (w *Watcher) Signals() <-chan Signal {
	return w.debouncer.Signals()
}

// Done is closed once the watcher goroutine has released its watches.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Stats returns the registration summary. Valid after Start returns.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context, ready chan<- error) {
	defer close(w.done)
	logger := w.config.Logger

	notifier, err := w.config.NewNotifier(w.config.Strategy)
	if err != nil {
		w.debouncer.queue.close(ctx)
		ready <- fmt.Errorf("failed to create notifier: %w", err)
		return
	}
	registry := NewRegistry(notifier, w.config.Policy, logger)

	start := time.Now()
	entries, skipped, err := w.register(registry)
	if err != nil {
		_ = registry.Close()
		w.debouncer.queue.close(ctx)
		ready <- err
		return
	}

	w.mu.Lock()
	w.stats = Stats{
		Entries:  entries,
		Targets:  registry.Len(),
		Skipped:  registry.Skipped() + skipped,
		Strategy: w.config.Strategy,
		Elapsed:  time.Since(start),
	}
	stats := w.stats
	w.mu.Unlock()

	logger.Printf("watching %s: %d entries, %d watches, %d skipped (%s, %v)",
		w.config.Root, stats.Entries, stats.Targets, stats.Skipped, stats.Strategy, stats.Elapsed.Round(time.Millisecond))
	ready <- nil

	go func() {
		for err := range registry.Errors() {
			logger.Printf("ERROR: notifier: %v", err)
		}
	}()

	w.debouncer.Run(ctx, registry.Events())

	if err := registry.Close(); err != nil {
		logger.Printf("ERROR: %v", err)
	}
}

// register runs the enumerator once and places watches according to the
// strategy. It returns the number of entries seen and how many paths the
// enumerator could not read.
func (w *Watcher) register(registry *Registry) (int, int, error) {
	root := w.config.Root
	enum := NewEnumerator(root, w.config.Logger)
	entries := 0

	if w.config.Strategy == StrategyRecursive {
		if err := registry.Register(root, true); err != nil {
			return 0, 0, err
		}
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	err = enum.Walk(func(e Entry) error {
		entries++
		switch w.config.Strategy {
		case StrategyPerEntry:
			return registry.Register(e.Path, false)
		default:
			// The recursive root watch does not follow links out of the tree.
			if e.IsDir && e.IsSymlink && !within(realRoot, e.RealPath) {
				return registry.Register(e.RealPath, true)
			}
			return nil
		}
	})
	if err != nil {
		return entries, enum.Skipped(), err
	}
	return entries, enum.Skipped(), nil
}

// within reports whether path is root or below it.
func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
