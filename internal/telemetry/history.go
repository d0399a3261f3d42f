package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// MaxHistoryRows bounds the history table; older rows are trimmed.
const MaxHistoryRows = 1000

// BuildRecord is one named index build.
type BuildRecord struct {
	Index      string
	Status     string
	Error      string
	Digest     string
	Documents  int
	Dropped    int
	Duration   time.Duration
	FinishedAt time.Time
}

// HistoryStore keeps recent build records in SQLite.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the history database at path.
// An empty path opens an in-memory database.
func OpenHistory(path string) (*HistoryStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	// concurrent builds from separate processes wait instead of failing
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragma: %w", err)
	}

	if err := InitHistorySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &HistoryStore{db: db}, nil
}

// InitHistorySchema creates the history table if it doesn't exist.
func InitHistorySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS build_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		index_name TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		digest TEXT NOT NULL DEFAULT '',
		documents INTEGER NOT NULL DEFAULT 0,
		dropped INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		finished_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_build_history_index ON build_history(index_name, id DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Record appends rec and trims the table to MaxHistoryRows.
func (s *HistoryStore) Record(ctx context.Context, rec BuildRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO build_history
			(index_name, status, error, digest, documents, dropped, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Index, rec.Status, rec.Error, rec.Digest, rec.Documents, rec.Dropped,
		rec.Duration.Milliseconds(), rec.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM build_history
		WHERE id NOT IN (
			SELECT id FROM build_history
			ORDER BY id DESC
			LIMIT ?
		)
	`, MaxHistoryRows)
	if err != nil {
		return fmt.Errorf("trim build history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. An empty index returns
// records of every index.
func (s *HistoryStore) Recent(ctx context.Context, index string, limit int) ([]BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT index_name, status, error, digest, documents, dropped, duration_ms, finished_at
		FROM build_history
		WHERE ? = '' OR index_name = ?
		ORDER BY id DESC
		LIMIT ?
	`, index, index, limit)
	if err != nil {
		return nil, fmt.Errorf("query build history: %w", err)
	}
	defer rows.Close()

	var records []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		var durationMS int64
		if err := rows.Scan(&rec.Index, &rec.Status, &rec.Error, &rec.Digest,
			&rec.Documents, &rec.Dropped, &durationMS, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
