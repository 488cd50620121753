//go:build linux || darwin

package term

import (
	"context"
	"io"
	"log"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/gish-sh/gish/internal/session"
)

func shellSpec(t *testing.T, command string) session.Spec {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return session.Spec{
		ID:   "test",
		Role: session.RoleStatus,
		Path: sh,
		Args: []string{"-c", command},
		Dir:  t.TempDir(),
	}
}

func spawnOrSkip(t *testing.T, s *PaneSurface, spec session.Spec) session.Child {
	t.Helper()
	c, err := s.Spawn(context.Background(), spec)
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	return c
}

func waitDone(t *testing.T, c session.Child) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for child")
	}
}

func TestPaneSurfaceCapturesOutput(t *testing.T) {
	pane := NewPane("Git Status", 0)
	s := NewPaneSurface(pane, 80, 24, log.New(io.Discard, "", 0))

	c := spawnOrSkip(t, s, shellSpec(t, "echo hello from pty; exit 3"))
	waitDone(t, c)

	if code := c.ExitCode(); code != 3 {
		t.Errorf("ExitCode() = %d, want 3", code)
	}
	if !strings.Contains(pane.Snapshot(), "hello from pty") {
		t.Errorf("pane = %q", pane.Snapshot())
	}
}

func TestPaneSurfaceRunsInDir(t *testing.T) {
	pane := NewPane("", 0)
	s := NewPaneSurface(pane, 80, 24, nil)
	spec := shellSpec(t, "pwd")

	c := spawnOrSkip(t, s, spec)
	waitDone(t, c)

	// the temp dir may be reached through a symlink
	if base := spec.Dir[strings.LastIndex(spec.Dir, "/")+1:]; !strings.Contains(pane.Snapshot(), base) {
		t.Errorf("pane = %q, want working dir %s", pane.Snapshot(), spec.Dir)
	}
}

func TestPaneSurfacePassesEnv(t *testing.T) {
	pane := NewPane("", 0)
	s := NewPaneSurface(pane, 80, 24, nil)
	spec := shellSpec(t, `echo "pager=$GIT_PAGER term=$TERM"`)
	spec.Env = []string{"GIT_PAGER=cat"}

	c := spawnOrSkip(t, s, spec)
	waitDone(t, c)

	if !strings.Contains(pane.Snapshot(), "pager=cat term=xterm-256color") {
		t.Errorf("pane = %q", pane.Snapshot())
	}
}

func TestPaneSurfaceKill(t *testing.T) {
	pane := NewPane("", 0)
	s := NewPaneSurface(pane, 80, 24, nil)

	c := spawnOrSkip(t, s, shellSpec(t, "sleep 30"))
	if err := c.Kill(); err != nil {
		t.Fatalf("Kill() failed: %v", err)
	}
	waitDone(t, c)

	if err := c.Kill(); err != nil {
		t.Errorf("Kill() after exit = %v, want nil", err)
	}
}

func TestPaneSurfaceClearDetachesOldOutput(t *testing.T) {
	pane := NewPane("", 0)
	s := NewPaneSurface(pane, 80, 24, nil)

	c := spawnOrSkip(t, s, shellSpec(t, "sleep 0.2; echo stale"))
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	waitDone(t, c)

	if strings.Contains(pane.Snapshot(), "stale") {
		t.Errorf("output from a cleared spawn leaked: %q", pane.Snapshot())
	}
}

func TestPaneSurfaceCancelledContext(t *testing.T) {
	s := NewPaneSurface(NewPane("", 0), 80, 24, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Spawn(ctx, shellSpec(t, "true")); err == nil {
		t.Error("Spawn() with cancelled context should fail")
	}
}

func TestShellSurfaceRunsShellOnPTY(t *testing.T) {
	out := &syncBuffer{}
	pr, pw := io.Pipe()
	defer pw.Close()
	s := NewShellSurface(newTestScreen(out), pr, nil)

	c, err := s.Spawn(context.Background(), shellSpec(t, "read line; echo got:$line"))
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	if _, err := pw.Write([]byte("hello\r")); err != nil {
		t.Fatal(err)
	}
	waitDone(t, c)

	if !strings.Contains(out.String(), "got:hello") {
		t.Errorf("screen = %q, want the shell's answer", out.String())
	}
	if code := c.ExitCode(); code != 0 {
		t.Errorf("ExitCode() = %d, want 0", code)
	}
}
