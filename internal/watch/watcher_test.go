package watch

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func fakeFactory(n *fakeNotifier) func(Strategy) (Notifier, error) {
	return func(Strategy) (Notifier, error) { return n, nil }
}

func TestWatcherPerEntryRegistersEveryEntry(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, ".hidden"), "x")
	mustWrite(t, filepath.Join(root, "dir", "file"), "x")

	n := newFakeNotifier()
	w, err := New(&Config{
		Root:        root,
		Strategy:    StrategyPerEntry,
		Logger:      quietLogger(),
		NewNotifier: fakeFactory(n),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// root, .hidden, dir, dir/file
	stats := w.Stats()
	if stats.Entries != 4 || stats.Targets != 4 {
		t.Errorf("stats = %+v, want 4 entries and 4 targets", stats)
	}
	for _, tg := range n.targets() {
		if tg.Recursive {
			t.Errorf("per-entry target %s is recursive", tg.Path)
		}
	}
}

func TestWatcherRecursiveCoversExternalLinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	mustWrite(t, filepath.Join(root, "inner", "f"), "x")
	mustWrite(t, filepath.Join(outside, "g"), "x")
	if err := os.Symlink(outside, filepath.Join(root, "ext")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "inner"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	n := newFakeNotifier()
	w, err := New(&Config{Root: root, Logger: quietLogger(), NewNotifier: fakeFactory(n)})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	realOutside, _ := filepath.EvalSymlinks(outside)
	got := n.targets()
	if len(got) != 2 {
		t.Fatalf("targets = %v, want root and external link target", got)
	}
	if got[0].Path != root || !got[0].Recursive {
		t.Errorf("first target = %+v, want recursive root", got[0])
	}
	if got[1].Path != realOutside || !got[1].Recursive {
		t.Errorf("second target = %+v, want recursive %s", got[1], realOutside)
	}
}

func TestWatcherRegistrationFailureIsFatal(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "bad")
	mustWrite(t, bad, "x")

	n := newFakeNotifier()
	n.failOn[bad] = true
	w, err := New(&Config{
		Root:        root,
		Strategy:    StrategyPerEntry,
		Logger:      quietLogger(),
		NewNotifier: fakeFactory(n),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	err = w.Start(context.Background())
	if !errors.Is(err, ErrRegistration) {
		t.Fatalf("Start() error = %v, want ErrRegistration", err)
	}

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watcher goroutine did not exit")
	}
	if _, ok := <-w.Signals(); ok {
		t.Error("signals should be closed after a fatal start")
	}
}

func TestWatcherSkipPolicyContinues(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "bad")
	mustWrite(t, bad, "x")

	n := newFakeNotifier()
	n.failOn[bad] = true
	w, err := New(&Config{
		Root:        root,
		Strategy:    StrategyPerEntry,
		Policy:      PolicySkip,
		Logger:      quietLogger(),
		NewNotifier: fakeFactory(n),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if s := w.Stats(); s.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", s.Skipped)
	}
}

func TestWatcherDebouncesInjectedEvents(t *testing.T) {
	n := newFakeNotifier()
	window := 50 * time.Millisecond
	w, err := New(&Config{
		Root:        t.TempDir(),
		QuietWindow: window,
		Logger:      quietLogger(),
		NewNotifier: fakeFactory(n),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		n.events <- RawEvent{Path: "x", Op: OpWrite, Time: time.Now()}
	}

	select {
	case sig := <-w.Signals():
		if sig.Seq != 1 {
			t.Errorf("Seq = %d, want 1", sig.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for signal")
	}

	select {
	case sig := <-w.Signals():
		t.Errorf("unexpected second signal %+v", sig)
	case <-time.After(3 * window):
	}

	cancel()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
	if !n.isClosed() {
		t.Error("notifier not closed on shutdown")
	}
}

func TestWatcherEndToEnd(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRecursive, StrategyPerEntry} {
		t.Run(string(strategy), func(t *testing.T) {
			root, err := filepath.EvalSymlinks(t.TempDir())
			if err != nil {
				t.Fatalf("EvalSymlinks: %v", err)
			}
			file := filepath.Join(root, "tracked.txt")
			mustWrite(t, file, "v1")

			w, err := New(&Config{
				Root:        root,
				Strategy:    strategy,
				QuietWindow: 50 * time.Millisecond,
				Logger:      quietLogger(),
			})
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := w.Start(ctx); err != nil {
				t.Fatalf("Start() failed: %v", err)
			}

			mustWrite(t, file, "v2")

			select {
			case <-w.Signals():
			case <-time.After(2 * time.Second):
				t.Fatal("timeout waiting for signal")
			}
		})
	}
}

func TestWatcherStartTwice(t *testing.T) {
	n := newFakeNotifier()
	w, err := New(&Config{Root: t.TempDir(), Logger: quietLogger(), NewNotifier: fakeFactory(n)})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := w.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != StrategyRecursive {
		t.Errorf("ParseStrategy(\"\") = %q, %v", s, err)
	}
	if s, err := ParseStrategy("per-entry"); err != nil || s != StrategyPerEntry {
		t.Errorf("ParseStrategy(per-entry) = %q, %v", s, err)
	}
	if _, err := ParseStrategy("polling"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestNewRequiresRoot(t *testing.T) {
	if _, err := New(&Config{}); err == nil {
		t.Error("expected error for empty root")
	}
}
