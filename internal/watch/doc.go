// Package watch turns filesystem activity under a repository root into a
// rate-limited stream of "repository changed" signals.
//
// # Architecture
//
// The package consists of four pieces, leaves first:
//
//   - Enumerator: walks the root once at startup, including hidden entries
//     and following symbolic links, with no depth or size ceiling
//   - Registry: binds paths to OS watch handles through a Notifier and
//     applies the registration policy (fail or skip)
//   - Debouncer: collapses bursts of raw events into single Signals spaced
//     at least one quiet window apart; in fixed mode an event less than a
//     window after the last signal is dropped
//   - Watcher: runs the three on one background goroutine
//
// # Strategies
//
// Two Notifier backends exist:
//
//   - StrategyRecursive (default) uses github.com/rjeczalik/notify with a
//     single recursive "root/..." watch. Files created after startup are
//     covered. Symlinked directories that point outside the root get their
//     own recursive watch.
//   - StrategyPerEntry uses github.com/fsnotify/fsnotify with one
//     non-recursive watch per enumerated entry. Entries created after
//     startup are NOT watched; this is a known coverage gap of the strategy.
//
// # Usage
//
//	w, err := watch.New(&watch.Config{Root: repo, QuietWindow: time.Second})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	for sig := range w.Signals() {
//	    fmt.Println("repository changed", sig.Seq)
//	}
//
// # Thread Safety
//
// All watcher state (registry targets, debounce state) is owned by the
// watcher goroutine. The only thing shared with the caller is the Signals
// channel, which is ordered and unbounded. Once ctx is cancelled, signals
// the caller has not yet received are discarded and the channel closes.
package watch
