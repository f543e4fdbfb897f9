// Package store provides SQLite-backed history for build passes and
// supervised runs.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store records build and run history in a local SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode; SQLite only supports one writer at a time.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		target TEXT NOT NULL,
		output TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		args TEXT,
		exit_code INTEGER,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_builds_created ON builds(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BuildRecord is one compiled target of a build pass.
type BuildRecord struct {
	ID         string
	Name       string
	Target     string
	Output     string
	DurationMS int64
	Success    bool
	Error      string
	CreatedAt  time.Time
}

// RunRecord is one supervised or synchronous execution of a binary.
type RunRecord struct {
	ID        string
	Command   string
	Args      string
	ExitCode  int
	StartedAt time.Time
	EndedAt   time.Time
}

// RecordBuild inserts a build record, assigning its ID and timestamp.
func (s *Store) RecordBuild(r *BuildRecord) error {
	r.ID = uuid.New().String()
	r.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO builds (id, name, target, output, duration_ms, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Target, r.Output, r.DurationMS, r.Success, r.Error, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// RecordRun inserts a run record, assigning its ID.
func (s *Store) RecordRun(r *RunRecord) error {
	r.ID = uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, command, args, exit_code, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Command, r.Args, r.ExitCode, r.StartedAt, r.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecentBuilds returns up to limit build records, newest first.
func (s *Store) RecentBuilds(limit int) ([]BuildRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, name, target, output, duration_ms, success, error, created_at
		 FROM builds ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var records []BuildRecord
	for rows.Next() {
		var (
			r      BuildRecord
			errTxt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Target, &r.Output, &r.DurationMS, &r.Success, &errTxt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		r.Error = errTxt.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecentRuns returns up to limit run records, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, command, args, exit_code, started_at, ended_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			r    RunRecord
			args sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Command, &args, &r.ExitCode, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Args = args.String
		records = append(records, r)
	}
	return records, rows.Err()
}
