package watch

import "time"

// Op represents the kind of filesystem operation behind a raw event.
type Op int

const (
	// OpCreate indicates a new entry was created.
	OpCreate Op = iota
	// OpWrite indicates an existing file was modified.
	OpWrite
	// OpRemove indicates an entry was deleted.
	OpRemove
	// OpRename indicates an entry was renamed or moved.
	OpRename
	// OpChmod indicates attributes changed.
	OpChmod
	// OpOther covers anything the backend reports that does not map above.
	OpOther
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	case OpChmod:
		return "chmod"
	default:
		return "other"
	}
}

// RawEvent is an unfiltered change notification from a Notifier.
type RawEvent struct {
	// Path is the path the OS reported.
	Path string
	// Op is the operation that occurred.
	Op Op
	// Time is when the notifier received the event. The debouncer measures
	// quiet windows against it, not against when it dequeues the event.
	Time time.Time
}
