// Package logging builds the process-wide log sink.
//
// The controlling terminal belongs to the interactive shell, so log output
// goes to a size-rotated file. Each component gets its own *log.Logger with
// a "[component] " prefix sharing that sink.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the log sink.
type Options struct {
	// File is the log file path. Empty disables file logging.
	File string
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int
	// MaxBackups is how many rotated files to keep.
	MaxBackups int
	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int
	// Verbose tees output to Stderr as well.
	Verbose bool
	// Stderr receives verbose output (default: os.Stderr).
	Stderr io.Writer
}

// Sink is an open log destination.
type Sink struct {
	w      io.Writer
	rotate *lumberjack.Logger
}

// Open creates the sink. With no file and no verbose flag, output is
// discarded.
func Open(opts Options) (*Sink, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var writers []io.Writer
	s := &Sink{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		s.rotate = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		writers = append(writers, s.rotate)
	}
	if opts.Verbose {
		writers = append(writers, opts.Stderr)
	}

	switch len(writers) {
	case 0:
		s.w = io.Discard
	case 1:
		s.w = writers[0]
	default:
		s.w = io.MultiWriter(writers...)
	}
	return s, nil
}

// Logger returns a logger for component.
func (s *Sink) Logger(component string) *log.Logger {
	return log.New(s.w, "["+component+"] ", log.LstdFlags)
}

// Writer returns the underlying writer.
func (s *Sink) Writer() io.Writer {
	return s.w
}

// Close closes the log file, if any.
func (s *Sink) Close() error {
	if s.rotate == nil {
		return nil
	}
	return s.rotate.Close()
}
