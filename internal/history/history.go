// Package history records refresh cycles in an embedded SQLite database.
//
// Every change signal that leads to a RestartAll is one cycle. A cycle
// stores the signal's timing plus one row per restarted session, so
// `gish history` can show how often a repository churned and which pane
// commands failed.
//
// Layout:
//   - Database file: $XDG_STATE_HOME/gish/history.db by default
//   - WAL mode, busy timeout 5s
//   - Tables: cycles, spawns (spawns cascade with their cycle)
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// timeFormat sorts lexically, so range queries work on the TEXT columns.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Cycle is one refresh cycle.
type Cycle struct {
	ID        int64
	Seq       uint64
	Root      string
	Triggered time.Time
	Started   time.Time
	Finished  time.Time
	Events    int
	Path      string
	Spawns    []Spawn
}

// Failed returns how many spawns in the cycle failed.
func (c *Cycle) Failed() int {
	n := 0
	for _, s := range c.Spawns {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// Spawn is one session restart inside a cycle.
type Spawn struct {
	Role    string
	SpawnID string
	Command string
	Dir     string
	Error   string
	Elapsed time.Duration
}

// DB wraps the history database connection.
type DB struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// Open opens (creating if needed) the database at path and initializes the
// schema.
//
// The caller MUST call Close() when done.
func Open(path string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[history] ", log.LstdFlags)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path, logger: logger}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Printf("WARNING: failed to checkpoint WAL: %v", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seq INTEGER NOT NULL,
		root TEXT NOT NULL,
		triggered_at TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		events INTEGER NOT NULL DEFAULT 0,
		path TEXT
	);

	CREATE TABLE IF NOT EXISTS spawns (
		cycle_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		role TEXT NOT NULL,
		spawn_id TEXT,
		command TEXT NOT NULL,
		dir TEXT NOT NULL,
		error TEXT,
		elapsed_us INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (cycle_id, position),
		FOREIGN KEY (cycle_id) REFERENCES cycles(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
	CREATE INDEX IF NOT EXISTS idx_cycles_root ON cycles(root, started_at);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Record stores c and its spawns in one transaction and sets c.ID.
func (db *DB) Record(ctx context.Context, c *Cycle) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO cycles (seq, root, triggered_at, started_at, finished_at, events, path)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(c.Seq),
		c.Root,
		formatTime(c.Triggered),
		formatTime(c.Started),
		formatTime(c.Finished),
		c.Events,
		nullString(c.Path),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read cycle id: %w", err)
	}

	for i, s := range c.Spawns {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO spawns (cycle_id, position, role, spawn_id, command, dir, error, elapsed_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, s.Role, nullString(s.SpawnID), s.Command, s.Dir, nullString(s.Error), s.Elapsed.Microseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert spawn %s: %w", s.Role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}
	c.ID = id
	return nil
}

// Query filters List.
type Query struct {
	// Since keeps cycles started at or after it. Zero means no bound.
	Since time.Time
	// Root keeps cycles for one repository. Empty means all.
	Root string
	// Limit caps the result. Zero means no cap.
	Limit int
}

// List returns matching cycles, newest first, with their spawns.
func (db *DB) List(ctx context.Context, q Query) ([]Cycle, error) {
	var where []string
	var args []interface{}
	if !q.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, formatTime(q.Since))
	}
	if q.Root != "" {
		where = append(where, "root = ?")
		args = append(args, q.Root)
	}

	query := `SELECT id, seq, root, triggered_at, started_at, finished_at, events, COALESCE(path, '') FROM cycles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		var seq int64
		var triggered, started, finished string
		if err := rows.Scan(&c.ID, &seq, &c.Root, &triggered, &started, &finished, &c.Events, &c.Path); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.Seq = uint64(seq)
		if c.Triggered, err = parseTime(triggered); err != nil {
			return nil, err
		}
		if c.Started, err = parseTime(started); err != nil {
			return nil, err
		}
		if c.Finished, err = parseTime(finished); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycles: %w", err)
	}
	rows.Close()

	for i := range cycles {
		spawns, err := db.spawns(ctx, cycles[i].ID)
		if err != nil {
			return nil, err
		}
		cycles[i].Spawns = spawns
	}
	return cycles, nil
}

func (db *DB) spawns(ctx context.Context, cycleID int64) ([]Spawn, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT role, COALESCE(spawn_id, ''), command, dir, COALESCE(error, ''), elapsed_us
	FROM spawns WHERE cycle_id = ? ORDER BY position`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query spawns: %w", err)
	}
	defer rows.Close()

	var out []Spawn
	for rows.Next() {
		var s Spawn
		var us int64
		if err := rows.Scan(&s.Role, &s.SpawnID, &s.Command, &s.Dir, &s.Error, &us); err != nil {
			return nil, fmt.Errorf("failed to scan spawn: %w", err)
		}
		s.Elapsed = time.Duration(us) * time.Microsecond
		out = append(out, s)
	}
	return out, rows.Err()
}

// Prune deletes cycles started before cutoff and returns how many went.
func (db *DB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
