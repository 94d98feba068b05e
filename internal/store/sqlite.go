// Package store persists resolution results to SQLite and Parquet.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/validate"
)

// SQLiteStore keeps every resolution run with its annotated records and
// conflicts. Safe for concurrent use.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // Serializes writes
}

// RunSummary describes one stored run
type RunSummary struct {
	RunID        string
	Subject      string
	Source       string
	ResolvedAt   time.Time
	RecordCount  int
	ClusterCount int
	Index        int
}

// OpenSQLite opens or creates the database at path. ":memory:" opens a
// private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	connStr := path
	if path == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// all connections must see the same in-memory database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		subject TEXT,
		source TEXT,
		resolved_at DATETIME NOT NULL,
		record_count INTEGER NOT NULL,
		cluster_count INTEGER NOT NULL,
		health_index INTEGER NOT NULL,
		report TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		record_index INTEGER NOT NULL,
		cluster_id INTEGER NOT NULL,
		representative TEXT,
		payload TEXT NOT NULL,
		PRIMARY KEY (run_id, record_index)
	);

	CREATE TABLE IF NOT EXISTS conflicts (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		position INTEGER NOT NULL,
		cluster_id INTEGER NOT NULL,
		attribute TEXT NOT NULL,
		conflicting_values TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_records_cluster ON records(run_id, cluster_id);
	CREATE INDEX IF NOT EXISTS idx_runs_resolved ON runs(resolved_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveResolution stores a run, its records and its conflicts in one
// transaction. Saving the same run id twice fails.
func (s *SQLiteStore) SaveResolution(ctx context.Context, res *model.Resolution) error {
	if res == nil || res.Report == nil {
		return fmt.Errorf("nothing to save: %w", model.ErrInvalidInput)
	}
	report := res.Report

	assignment, err := validate.AssignmentFromField(res.Records, model.FieldClusterID)
	if err != nil {
		return fmt.Errorf("records are not annotated: %w", err)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, subject, source, resolved_at, record_count, cluster_count, health_index, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Subject, report.Source, report.ResolvedAt.UTC(),
		report.RecordCount, report.ClusterCount, report.Score.Index, string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	recordStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, record_index, cluster_id, representative, payload)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer func() { _ = recordStmt.Close() }()

	for i, record := range res.Records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", i, err)
		}
		rep, _ := record[model.FieldClusterRep].(string)
		if _, err := recordStmt.ExecContext(ctx, report.RunID, i, assignment[i], rep, string(payload)); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	conflictStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conflicts (run_id, position, cluster_id, attribute, conflicting_values)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare conflicts: %w", err)
	}
	defer func() { _ = conflictStmt.Close() }()

	for i, c := range report.Conflicts {
		values, err := json.Marshal(c.ConflictingValues)
		if err != nil {
			return fmt.Errorf("marshal conflict %d: %w", i, err)
		}
		if _, err := conflictStmt.ExecContext(ctx, report.RunID, i, c.ClusterID, c.Attribute, string(values)); err != nil {
			return fmt.Errorf("insert conflict %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs lists stored runs, newest first
func (s *SQLiteStore) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, subject, source, resolved_at, record_count, cluster_count, health_index
		FROM runs ORDER BY resolved_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Subject, &r.Source, &r.ResolvedAt, &r.RecordCount, &r.ClusterCount, &r.Index); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Records returns the annotated records of a run in input order
func (s *SQLiteStore) Records(ctx context.Context, runID string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM records WHERE run_id = ? ORDER BY record_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []model.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var record model.Record
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Conflicts returns the conflicts of a run in report order
func (s *SQLiteStore) Conflicts(ctx context.Context, runID string) ([]model.ConflictRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, attribute, conflicting_values FROM conflicts
		WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	conflicts := []model.ConflictRecord{}
	for rows.Next() {
		var c model.ConflictRecord
		var values string
		if err := rows.Scan(&c.ClusterID, &c.Attribute, &values); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		if err := json.Unmarshal([]byte(values), &c.ConflictingValues); err != nil {
			return nil, fmt.Errorf("decode conflict values: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}
