package watch

import (
	"fmt"
	"io"
	"log"
)

// Notifier is an OS change-notification backend.
type Notifier interface {
	// Add places a watch on path. Recursive watches cover every entry below
	// path, including entries created later.
	Add(path string, recursive bool) error
	// Events delivers raw events until Close. Delivery happens on the
	// notifier's own goroutine.
	Events() <-chan RawEvent
	// Errors delivers backend errors until Close.
	Errors() <-chan error
	// Close releases every watch and closes both channels.
	Close() error
}

// Policy decides what happens when a single registration fails.
type Policy string

const (
	// PolicyFail aborts startup on the first failure.
	PolicyFail Policy = "fail"
	// PolicySkip logs the failure and continues.
	PolicySkip Policy = "skip"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyFail, PolicySkip:
		return Policy(s), nil
	case "":
		return PolicyFail, nil
	default:
		return "", fmt.Errorf("unknown registration policy %q (want fail or skip)", s)
	}
}

// Target is a registered watch. One exists per watched path.
type Target struct {
	Path      string
	Recursive bool
}

// Registry binds paths to watch handles on a Notifier.
type Registry struct {
	notifier Notifier
	policy   Policy
	logger   *log.Logger
	targets  map[string]Target
	order    []string
	skipped  int
}

// NewRegistry creates a registry over n.
func NewRegistry(n Notifier, policy Policy, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if policy == "" {
		policy = PolicyFail
	}
	return &Registry{
		notifier: n,
		policy:   policy,
		logger:   logger,
		targets:  make(map[string]Target),
	}
}

// Register places a watch on path. Registering the same path twice is a
// no-op. Under PolicyFail a notifier error is returned wrapped in
// ErrRegistration; under PolicySkip it is logged and nil is returned.
func (r *Registry) Register(path string, recursive bool) error {
	if _, ok := r.targets[path]; ok {
		return nil
	}

	if err := r.notifier.Add(path, recursive); err != nil {
		if r.policy == PolicySkip {
			r.skipped++
			r.logger.Printf("WARNING: not watching %s: %v", path, err)
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ErrRegistration, path, err)
	}

	r.targets[path] = Target{Path: path, Recursive: recursive}
	r.order = append(r.order, path)
	return nil
}

// Targets returns registered targets in registration order.
func (r *Registry) Targets() []Target {
	out := make([]Target, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.targets[p])
	}
	return out
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	return len(r.targets)
}

// Skipped returns how many registrations failed under PolicySkip.
func (r *Registry) Skipped() int {
	return r.skipped
}

// Events returns the notifier's raw event stream.
func (r *Registry) Events() <-chan RawEvent {
	return r.notifier.Events()
}

// Errors returns the notifier's error stream.
func (r *Registry) Errors() <-chan error {
	return r.notifier.Errors()
}

// Close releases every watch.
func (r *Registry) Close() error {
	return r.notifier.Close()
}
