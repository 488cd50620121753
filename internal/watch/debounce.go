package watch

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

// DefaultQuietWindow is the minimum spacing between two signals.
const DefaultQuietWindow = time.Second

// Mode selects how the debouncer treats events that arrive while a signal
// is pending.
type Mode string

const (
	// ModeFixed emits one window after the first event of a burst.
	// Events during the window, and events within a window after the
	// emission, are absorbed.
	ModeFixed Mode = "fixed"
	// ModeSliding restarts the window on every event and emits once the
	// tree has been quiet for a full window.
	ModeSliding Mode = "sliding"
)

// ParseMode validates a debounce mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFixed, ModeSliding:
		return Mode(s), nil
	case "":
		return ModeFixed, nil
	default:
		return "", fmt.Errorf("unknown debounce mode %q (want fixed or sliding)", s)
	}
}

// Signal announces that the repository changed. Consumers treat it as a
// bare trigger; the fields exist for logging and history.
type Signal struct {
	// Seq counts signals from 1.
	Seq uint64
	// Trigger is the arrival time of the event that armed the window.
	Trigger time.Time
	// Emitted is when the signal was queued.
	Emitted time.Time
	// Events is how many raw events the signal covers.
	Events int
	// Path is the path of the triggering event.
	Path string
}

// DebounceConfig configures a Debouncer.
type DebounceConfig struct {
	Window time.Duration
	Mode   Mode
	Logger *log.Logger
}

// Debouncer collapses raw events into Signals. Two consecutive signals are
// always at least Window apart. In fixed mode an event is either covered by
// a pending signal, dropped because a signal went out less than Window
// before it, or arms the next signal. In sliding mode every event is
// eventually covered by a signal.
type Debouncer struct {
	window time.Duration
	mode   Mode
	logger *log.Logger

	lastTrigger time.Time
	lastEmit    time.Time
	pending     bool
	pendingPath string
	covered     int
	dropped     int
	seq         uint64

	queue *signalQueue
}

// NewDebouncer creates a debouncer. Signals are available immediately but
// only produced while Run is executing.
func NewDebouncer(cfg DebounceConfig) *Debouncer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultQuietWindow
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeFixed
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return &Debouncer{
		window: cfg.Window,
		mode:   cfg.Mode,
		logger: cfg.Logger,
		queue:  newSignalQueue(),
	}
}

// Signals returns the ordered, unbounded signal stream. It is closed when
// Run returns.
func (d *Debouncer) Signals() <-chan Signal {
	return d.queue.out
}

// Run consumes raw events until ctx is done or in is closed. A pending
// signal is discarded on exit. Signals already emitted are still delivered
// after in closes, until ctx is done.
func (d *Debouncer) Run(ctx context.Context, in <-chan RawEvent) {
	defer d.queue.close(ctx)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case ev, ok := <-in:
			if !ok {
				timer.Stop()
				return
			}
			if delay, arm := d.observe(ev, time.Now()); arm {
				timer.Reset(delay)
				fire = timer.C
			}

		case now := <-fire:
			fire = nil
			d.emit(now)
		}
	}
}

// observe updates state for one event and reports whether the timer must
// be (re)armed and for how long.
func (d *Debouncer) observe(ev RawEvent, now time.Time) (time.Duration, bool) {
	at := ev.Time
	if at.IsZero() || at.After(now) {
		at = now
	}

	switch d.mode {
	case ModeSliding:
		d.covered++
		if !d.pending {
			d.pendingPath = ev.Path
		}
		d.pending = true
		d.lastTrigger = at
		return d.delay(at, now), true

	default:
		if d.pending {
			d.covered++
			return 0, false
		}
		if !d.lastEmit.IsZero() && at.Sub(d.lastEmit) <= d.window {
			d.dropped++
			return 0, false
		}
		d.covered++
		d.pending = true
		d.pendingPath = ev.Path
		d.lastTrigger = at
		return d.delay(at, now), true
	}
}

// delay returns the wait until the next signal may be emitted: the rest of
// the window started at at, but never less than a window after the last
// emission.
func (d *Debouncer) delay(at, now time.Time) time.Duration {
	due := at.Add(d.window)
	if !d.lastEmit.IsZero() {
		if floor := d.lastEmit.Add(d.window); floor.After(due) {
			due = floor
		}
	}
	if wait := due.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

func (d *Debouncer) emit(now time.Time) {
	if !d.pending {
		return
	}
	d.seq++
	sig := Signal{
		Seq:     d.seq,
		Trigger: d.lastTrigger,
		Emitted: now,
		Events:  d.covered,
		Path:    d.pendingPath,
	}
	d.pending = false
	d.pendingPath = ""
	d.covered = 0
	d.lastEmit = now

	if d.dropped > 0 {
		d.logger.Printf("signal %d: %d event(s), first %s (%d dropped after signal %d)", sig.Seq, sig.Events, sig.Path, d.dropped, sig.Seq-1)
		d.dropped = 0
	} else {
		d.logger.Printf("signal %d: %d event(s), first %s", sig.Seq, sig.Events, sig.Path)
	}
	d.queue.push(sig)
}

// signalQueue is an unbounded FIFO between the debouncer and its consumer,
// so a slow consumer never stalls event intake.
type signalQueue struct {
	in  chan Signal
	out chan Signal
	// ctx bounds delivery of what is still buffered once in is closed.
	ctx context.Context
}

func newSignalQueue() *signalQueue {
	q := &signalQueue{
		in:  make(chan Signal),
		out: make(chan Signal),
	}
	go q.run()
	return q
}

func (q *signalQueue) push(s Signal) {
	q.in <- s
}

// close ends intake. Buffered signals are handed out until ctx is done,
// then out is closed.
func (q *signalQueue) close(ctx context.Context) {
	q.ctx = ctx
	close(q.in)
}

func (q *signalQueue) run() {
	var buf []Signal
	for {
		var out chan Signal
		var next Signal
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}

		select {
		case s, ok := <-q.in:
			if !ok {
				q.flush(buf)
				close(q.out)
				return
			}
			buf = append(buf, s)
		case out <- next:
			buf = buf[1:]
		}
	}
}

func (q *signalQueue) flush(buf []Signal) {
	for _, s := range buf {
		select {
		case q.out <- s:
		case <-q.ctx.Done():
			return
		}
	}
}
