// Package sqlitestore persists execution records in SQLite.
//
// A Store implements monitor.Sink, so every attempt the monitor finishes is
// also written to disk and survives restarts and history eviction:
//
//	store, err := sqlitestore.New("engine.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	if err := store.Migrate(ctx); err != nil {
//	    return err
//	}
//	executor, err := exec.New(exec.Options{Sink: store})
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jonwraymond/toolengine/monitor"
)

// Store is a SQLite-backed execution record store.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ordering: records are listed in append order.
type Store struct {
	db *sql.DB
}

var _ monitor.Sink = (*Store)(nil)

// New opens the database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS execution_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		execution_id TEXT NOT NULL UNIQUE,
		tool_name TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		timed_out INTEGER NOT NULL,
		cancelled INTEGER NOT NULL,
		error_message TEXT DEFAULT '',
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_execution_records_tool ON execution_records(tool_name);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores rec.
func (s *Store) Append(ctx context.Context, rec monitor.ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_records
			(execution_id, tool_name, start_time, end_time, duration_ms, succeeded, timed_out, cancelled, error_message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ExecutionID, rec.ToolName, rec.StartTime.UTC(), rec.EndTime.UTC(), rec.DurationMs,
		rec.Succeeded, rec.WasTimedOut, rec.WasCancelled, rec.ErrorMessage, string(data))
	if err != nil {
		return fmt.Errorf("insert record %s: %w", rec.ExecutionID, err)
	}
	return nil
}

// List returns matching records oldest first, with the same filter
// semantics as the in-memory history.
func (s *Store) List(ctx context.Context, f monitor.Filter) ([]monitor.ExecutionRecord, error) {
	query := "SELECT data FROM execution_records"
	var args []any
	if f.Tool != "" {
		query += " WHERE tool_name = ?"
		args = append(args, f.Tool)
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []monitor.ExecutionRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec monitor.ExecutionRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// Stats aggregates every stored record per tool.
func (s *Store) Stats(ctx context.Context) ([]monitor.ToolStats, error) {
	recs, err := s.List(ctx, monitor.Filter{})
	if err != nil {
		return nil, err
	}
	return monitor.ComputeStats(recs), nil
}

// Prune deletes records that finished before cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM execution_records WHERE end_time < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	return res.RowsAffected()
}
