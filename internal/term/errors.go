package term

import "errors"

var (
	// ErrPTYUnsupported is returned on platforms without PTY support.
	ErrPTYUnsupported = errors.New("pseudo-terminals are not supported on this platform")

	// ErrNotTerminal is returned when the host stdin is not a terminal.
	ErrNotTerminal = errors.New("stdin is not a terminal")

	// ErrScreenTooSmall is returned when the host terminal cannot fit the
	// panes and a usable shell area.
	ErrScreenTooSmall = errors.New("terminal too small")
)
