package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the archive at dbPath. Use
// ":memory:" for an in-memory archive.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		pipeline TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		summary TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline);
	CREATE TABLE IF NOT EXISTS node_states (
		run_id TEXT NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		finalizer INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER,
		finished_at INTEGER,
		PRIMARY KEY (run_id, name)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save archives a run and its nodes in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, run RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, pipeline, status, exit_code, started_at, finished_at, summary) VALUES (?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.Pipeline, run.Status, run.ExitCode, toUnixNano(run.StartedAt), toUnixNano(run.FinishedAt), run.Summary,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, n := range run.Nodes {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO node_states (run_id, name, position, finalizer, state, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			run.ID, n.Name, n.Position, n.Finalizer, n.State, n.Error, nullableTime(n.StartedAt), nullableTime(n.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("insert node state %s/%s: %w", run.ID, n.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// Get returns an archived run with its nodes ordered by position.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, pipeline, status, exit_code, started_at, finished_at, summary FROM runs WHERE id = ?", runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("query run %s: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, position, finalizer, state, error, started_at, finished_at FROM node_states WHERE run_id = ? ORDER BY position",
		runID)
	if err != nil {
		return RunRecord{}, fmt.Errorf("query node states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n NodeRecord
		var started, finished sql.NullInt64
		if err := rows.Scan(&n.Name, &n.Position, &n.Finalizer, &n.State, &n.Error, &started, &finished); err != nil {
			return RunRecord{}, fmt.Errorf("scan node state: %w", err)
		}
		n.StartedAt = fromNullable(started)
		n.FinishedAt = fromNullable(finished)
		run.Nodes = append(run.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return RunRecord{}, fmt.Errorf("iterate rows: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) List(ctx context.Context, pipeline string) ([]RunRecord, error) {
	query := "SELECT id, pipeline, status, exit_code, started_at, finished_at, summary FROM runs"
	var args []any
	if pipeline != "" {
		query += " WHERE pipeline = ?"
		args = append(args, pipeline)
	}
	query += " ORDER BY started_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var r RunRecord
	var started, finished int64
	if err := sc.Scan(&r.ID, &r.Pipeline, &r.Status, &r.ExitCode, &started, &finished, &r.Summary); err != nil {
		return RunRecord{}, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	r.FinishedAt = time.Unix(0, finished).UTC()
	return r, nil
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nullableTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullable(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64).UTC()
}
