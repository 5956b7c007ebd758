// Package history persists completed pipeline runs in a SQLite database so
// past builds can be inspected after the report file has been overwritten.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/esque-os/esquebuild/internal/pipeline"
)

// DefaultRecentLimit caps Recent queries that pass no explicit limit.
const DefaultRecentLimit = 10

// Store is a SQLite-backed log of pipeline runs.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens the run history at path, creating parent directories and the
// schema as needed. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create history directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		commit_hash TEXT,
		strict INTEGER NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		composite INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		stages BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records a completed run.
func (s *Store) Append(ctx context.Context, rep *pipeline.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stages, err := json.Marshal(rep.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}

	strict := 0
	if rep.Strict {
		strict = 1
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO runs (id, commit_hash, strict, started, finished, composite, exit_code, outcome, stages) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rep.RunID, rep.Commit, strict, rep.Start.Unix(), rep.End.Unix(), rep.Composite, rep.ExitCode, string(rep.Outcome), stages,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

// Run is one persisted pipeline run.
type Run struct {
	ID        string
	Commit    string
	Strict    bool
	Started   time.Time
	Finished  time.Time
	Composite int
	ExitCode  int
	Outcome   pipeline.Outcome
	Stages    []pipeline.StageRecord
}

// Duration returns the wall clock time the run took.
func (r Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Recent returns up to limit runs, newest first. A limit of zero or less
// falls back to DefaultRecentLimit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, commit_hash, strict, started, finished, composite, exit_code, outcome, stages FROM runs ORDER BY started DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			strict            int
			started, finished int64
			outcome           string
			stages            []byte
		)
		if err := rows.Scan(&r.ID, &r.Commit, &strict, &started, &finished, &r.Composite, &r.ExitCode, &outcome, &stages); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Strict = strict != 0
		r.Started = time.Unix(started, 0)
		r.Finished = time.Unix(finished, 0)
		r.Outcome = pipeline.Outcome(outcome)
		if len(stages) > 0 {
			if err := json.Unmarshal(stages, &r.Stages); err != nil {
				return nil, fmt.Errorf("unmarshal stages: %w", err)
			}
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return runs, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
