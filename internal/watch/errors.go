package watch

import "errors"

var (
	// ErrEnumeratorConsumed is returned when Walk is called a second time.
	ErrEnumeratorConsumed = errors.New("enumerator already consumed")

	// ErrRegistration wraps the first registration failure under PolicyFail.
	ErrRegistration = errors.New("watch registration failed")

	// ErrRecursiveUnsupported is returned by notifiers that can only place
	// non-recursive watches.
	ErrRecursiveUnsupported = errors.New("recursive watch not supported by notifier")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("watcher already started")

	// ErrClosed is returned when registering on a closed notifier.
	ErrClosed = errors.New("notifier closed")
)
