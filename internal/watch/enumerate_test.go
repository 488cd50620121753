package watch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func collect(t *testing.T, root string) []Entry {
	t.Helper()
	var got []Entry
	if err := NewEnumerator(root, nil).Walk(func(e Entry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	return got
}

func paths(entries []Entry) map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return m
}

func TestEnumeratorIncludesHiddenAndLinkTargets(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	mustWrite(t, filepath.Join(root, ".hidden"), "x")
	mustWrite(t, filepath.Join(root, ".git", "HEAD"), "ref: refs/heads/main")
	mustWrite(t, filepath.Join(root, "src", "main.go"), "package main")
	mustWrite(t, filepath.Join(outside, "shared", "lib.go"), "package lib")

	if err := os.Symlink(outside, filepath.Join(root, "ext")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	got := paths(collect(t, root))

	for _, want := range []string{
		root,
		filepath.Join(root, ".hidden"),
		filepath.Join(root, ".git"),
		filepath.Join(root, ".git", "HEAD"),
		filepath.Join(root, "src", "main.go"),
		filepath.Join(root, "ext"),
		filepath.Join(root, "ext", "shared", "lib.go"),
	} {
		if _, ok := got[want]; !ok {
			t.Errorf("missing entry %s", want)
		}
	}

	ext := got[filepath.Join(root, "ext")]
	if !ext.IsDir || !ext.IsSymlink {
		t.Errorf("ext entry = %+v, want symlinked dir", ext)
	}
	realOutside, _ := filepath.EvalSymlinks(outside)
	if ext.RealPath != realOutside {
		t.Errorf("ext RealPath = %s, want %s", ext.RealPath, realOutside)
	}
}

func TestEnumeratorLinkCycleTerminates(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a", "file"), "x")
	if err := os.Symlink(root, filepath.Join(root, "a", "loop")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	got := paths(collect(t, root))

	if _, ok := got[filepath.Join(root, "a", "loop")]; !ok {
		t.Error("cycle link itself should be yielded")
	}
	if _, ok := got[filepath.Join(root, "a", "loop", "a", "file")]; ok {
		t.Error("cycle should not be descended into")
	}
}

func TestEnumeratorSkipsBrokenLinks(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "ok"), "x")
	if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	enum := NewEnumerator(root, nil)
	var got []Entry
	if err := enum.Walk(func(e Entry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	m := paths(got)
	if _, ok := m[filepath.Join(root, "ok")]; !ok {
		t.Error("regular file missing")
	}
	if _, ok := m[filepath.Join(root, "dangling")]; ok {
		t.Error("broken link should be skipped")
	}
	if enum.Skipped() != 1 {
		t.Errorf("Skipped() = %d, want 1", enum.Skipped())
	}
}

func TestEnumeratorSingleUse(t *testing.T) {
	root := t.TempDir()
	enum := NewEnumerator(root, nil)
	noop := func(Entry) error { return nil }

	if err := enum.Walk(noop); err != nil {
		t.Fatalf("first Walk failed: %v", err)
	}
	if err := enum.Walk(noop); !errors.Is(err, ErrEnumeratorConsumed) {
		t.Errorf("second Walk error = %v, want ErrEnumeratorConsumed", err)
	}
}

func TestEnumeratorStopsOnCallbackError(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a"), "x")
	mustWrite(t, filepath.Join(root, "b"), "x")

	stop := errors.New("stop")
	calls := 0
	err := NewEnumerator(root, nil).Walk(func(Entry) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("Walk error = %v, want %v", err, stop)
	}
	if calls != 2 {
		t.Errorf("callback called %d times, want 2", calls)
	}
}

func TestEnumeratorMissingRoot(t *testing.T) {
	err := NewEnumerator(filepath.Join(t.TempDir(), "nope"), nil).Walk(func(Entry) error { return nil })
	if err == nil {
		t.Error("expected error for missing root")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
