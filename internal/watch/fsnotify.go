package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSNotifier places one non-recursive fsnotify watch per path.
type FSNotifier struct {
	watcher *fsnotify.Watcher
	events  chan RawEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewFSNotifier creates an fsnotify-backed notifier and starts its event
// loop.
func NewFSNotifier() (*FSNotifier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	n := &FSNotifier{
		watcher: watcher,
		events:  make(chan RawEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}
	n.wg.Add(1)
	go n.processEvents()
	return n, nil
}

// Add watches path. Recursive watches are not supported.
func (n *FSNotifier) Add(path string, recursive bool) error {
	if recursive {
		return ErrRecursiveUnsupported
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	return n.watcher.Add(path)
}

// Events returns the raw event channel.
func (n *FSNotifier) Events() <-chan RawEvent {
	return n.events
}

// Errors returns the error channel.
func (n *FSNotifier) Errors() <-chan error {
	return n.errors
}

// Close stops the event loop and releases all watches. It blocks until the
// loop has exited.
func (n *FSNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)

	err := n.watcher.Close()
	n.wg.Wait()

	close(n.events)
	close(n.errors)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (n *FSNotifier) processEvents() {
	defer n.wg.Done()

	for {
		select {
		case <-n.done:
			return

		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			select {
			case n.events <- convertFSEvent(event, time.Now()):
			case <-n.done:
				return
			}

		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			select {
			case n.errors <- err:
			case <-n.done:
				return
			}
		}
	}
}

func convertFSEvent(event fsnotify.Event, at time.Time) RawEvent {
	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	case event.Has(fsnotify.Chmod):
		op = OpChmod
	default:
		op = OpOther
	}
	return RawEvent{Path: event.Name, Op: op, Time: at}
}
