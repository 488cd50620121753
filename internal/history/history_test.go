package history

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state", "history.db"), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleCycle(seq uint64, root string, started time.Time) *Cycle {
	return &Cycle{
		Seq:       seq,
		Root:      root,
		Triggered: started.Add(-time.Second),
		Started:   started,
		Finished:  started.Add(40 * time.Millisecond),
		Events:    3,
		Path:      root + "/a.txt",
		Spawns: []Spawn{
			{Role: "log", SpawnID: "id-1", Command: "git log", Dir: root, Elapsed: 10 * time.Millisecond},
			{Role: "status", SpawnID: "id-2", Command: "git status --short", Dir: root, Error: "spawn failed: status: no pty"},
			{Role: "branch", SpawnID: "id-3", Command: "git branch -a", Dir: root, Elapsed: 5 * time.Millisecond},
		},
	}
}

func TestRecordAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	c := sampleCycle(1, "/repo", now)
	if err := db.Record(ctx, c); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if c.ID == 0 {
		t.Error("Record() should set the cycle ID")
	}

	got, err := db.List(ctx, Query{})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List() returned %d cycles, want 1", len(got))
	}

	g := got[0]
	if g.Seq != 1 || g.Root != "/repo" || g.Events != 3 || g.Path != "/repo/a.txt" {
		t.Errorf("cycle = %+v", g)
	}
	if !g.Started.Equal(now) {
		t.Errorf("Started = %v, want %v", g.Started, now)
	}
	if len(g.Spawns) != 3 {
		t.Fatalf("got %d spawns, want 3", len(g.Spawns))
	}
	if g.Spawns[0].Role != "log" || g.Spawns[1].Role != "status" || g.Spawns[2].Role != "branch" {
		t.Errorf("spawn order = %+v", g.Spawns)
	}
	if g.Spawns[0].Elapsed != 10*time.Millisecond {
		t.Errorf("Elapsed = %v", g.Spawns[0].Elapsed)
	}
	if g.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", g.Failed())
	}
}

func TestListFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, root := range []string{"/a", "/b", "/a", "/a"} {
		if err := db.Record(ctx, sampleCycle(uint64(i+1), root, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	tests := []struct {
		name    string
		query   Query
		wantSeq []uint64
	}{
		{"all newest first", Query{}, []uint64{4, 3, 2, 1}},
		{"root", Query{Root: "/a"}, []uint64{4, 3, 1}},
		{"since", Query{Since: base.Add(90 * time.Minute)}, []uint64{4, 3}},
		{"limit", Query{Limit: 2}, []uint64{4, 3}},
		{"root and since", Query{Root: "/b", Since: base.Add(2 * time.Hour)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if len(got) != len(tt.wantSeq) {
				t.Fatalf("got %d cycles, want %d", len(got), len(tt.wantSeq))
			}
			for i, c := range got {
				if c.Seq != tt.wantSeq[i] {
					t.Errorf("cycle %d seq = %d, want %d", i, c.Seq, tt.wantSeq[i])
				}
			}
		})
	}
}

func TestPruneCascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := db.Record(ctx, sampleCycle(uint64(i+1), "/repo", base.Add(time.Duration(i)*24*time.Hour))); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	n, err := db.Prune(ctx, base.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() removed %d, want 2", n)
	}

	var orphans int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spawns WHERE cycle_id NOT IN (SELECT id FROM cycles)`).Scan(&orphans); err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("%d orphaned spawns after prune", orphans)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	db, err := Open(path, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := db.Record(ctx, sampleCycle(1, "/repo", time.Now())); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	db, err = Open(path, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	got, err := db.List(ctx, Query{})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d cycles after reopen, want 1", len(got))
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"90m", now.Add(-90 * time.Minute), false},
		{"2026-03-01T08:00:00Z", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), false},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2 hours ago", now.Add(-2 * time.Hour), false},
		{"purple monkey dishwasher", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSince(tt.in, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSince(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseSince(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
