package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

// notify drops events when the channel is full, so the buffer is generous.
const notifyBuffer = 1024

// RecursiveNotifier places watches through github.com/rjeczalik/notify,
// which supports recursive "dir/..." watches on every platform it covers.
type RecursiveNotifier struct {
	ch     chan notify.EventInfo
	events chan RawEvent
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewRecursiveNotifier creates a notifier and starts its event loop.
func NewRecursiveNotifier() *RecursiveNotifier {
	n := &RecursiveNotifier{
		ch:     make(chan notify.EventInfo, notifyBuffer),
		events: make(chan RawEvent, 100),
		errors: make(chan error),
		done:   make(chan struct{}),
	}
	n.wg.Add(1)
	go n.processEvents()
	return n
}

// Add watches path, and everything below it when recursive is set.
func (n *RecursiveNotifier) Add(path string, recursive bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	if recursive {
		path = filepath.Join(path, "...")
	}
	return notify.Watch(path, n.ch, notify.All)
}

// Events returns the raw event channel.
func (n *RecursiveNotifier) Events() <-chan RawEvent {
	return n.events
}

// Errors returns the error channel. The backend reports no asynchronous
// errors, so nothing is ever sent on it.
func (n *RecursiveNotifier) Errors() <-chan error {
	return n.errors
}

// Close stops every watch and the event loop.
func (n *RecursiveNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	notify.Stop(n.ch)
	close(n.done)
	n.wg.Wait()

	close(n.events)
	close(n.errors)
	return nil
}

func (n *RecursiveNotifier) processEvents() {
	defer n.wg.Done()

	for {
		select {
		case <-n.done:
			return
		case ei := <-n.ch:
			select {
			case n.events <- convertNotifyEvent(ei, time.Now()):
			case <-n.done:
				return
			}
		}
	}
}

func convertNotifyEvent(ei notify.EventInfo, at time.Time) RawEvent {
	var op Op
	switch ei.Event() {
	case notify.Create:
		op = OpCreate
	case notify.Write:
		op = OpWrite
	case notify.Remove:
		op = OpRemove
	case notify.Rename:
		op = OpRename
	default:
		op = OpOther
	}
	return RawEvent{Path: ei.Path(), Op: op, Time: at}
}
