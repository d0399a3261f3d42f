package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteEngine indexes documents into an SQLite FTS5 table held in an
// in-memory database.
type SQLiteEngine struct {
	mu      sync.Mutex
	db      *sql.DB
	opts    Options
	ids     map[int]struct{}
	pending []pendingDoc
	closed  bool
}

type pendingDoc struct {
	id      int
	content string
}

// NewSQLiteEngine creates an empty FTS5 index.
func NewSQLiteEngine(opts Options) (*SQLiteEngine, error) {
	// IMPORTANT: Use modernc.org/sqlite driver (pure Go, no CGO)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	e := &SQLiteEngine{
		db:   db,
		opts: opts,
		ids:  make(map[int]struct{}),
	}

	if err := e.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return e, nil
}

// initSchema creates the FTS5 virtual table and its vocabulary view.
func (s *SQLiteEngine) initSchema() error {
	schema := `
	-- content stores pre-tokenized text, rowid is the document id
	CREATE VIRTUAL TABLE fts_content USING fts5(
		content,
		tokenize="unicode61 remove_diacritics 0"
	);

	-- one row per term occurrence: term, doc (rowid), col, offset
	CREATE VIRTUAL TABLE fts_vocab USING fts5vocab(fts_content, instance);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Backend implements Engine.
func (s *SQLiteEngine) Backend() string { return string(BackendSQLite) }

// Segments implements Engine.
func (s *SQLiteEngine) Segments() []string { return CanonicalSegments() }

// Add implements Engine.
// Content is pre-tokenized with Tokenize so that FTS5 sees the same terms as
// the Bleve analyzer.
func (s *SQLiteEngine) Add(id int, doc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if id < 0 {
		return fmt.Errorf("invalid document id %d", id)
	}
	if _, exists := s.ids[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	s.ids[id] = struct{}{}
	s.pending = append(s.pending, pendingDoc{
		id:      id,
		content: strings.Join(Tokenize(doc, s.opts), " "),
	})
	return nil
}

// flush writes pending documents in a single transaction.
func (s *SQLiteEngine) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_content(rowid, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range s.pending {
		if _, err := stmt.ExecContext(ctx, doc.id, doc.content); err != nil {
			return fmt.Errorf("failed to index document %d: %w", doc.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.pending = nil
	return nil
}

// Export implements Engine.
func (s *SQLiteEngine) Export(ctx context.Context) (<-chan Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := s.flush(ctx); err != nil {
		return nil, err
	}

	ids := sortedIDs(s.ids)
	return runExport(ctx, map[string]exportFunc{
		SegmentRegistry: func(context.Context) (string, error) {
			return marshalSegment(ids)
		},
		SegmentConfig: func(context.Context) (string, error) {
			return configSegment(s.Backend(), s.opts)
		},
		SegmentMapping: func(ctx context.Context) (string, error) {
			m, err := s.mapping(ctx)
			if err != nil {
				return "", err
			}
			return marshalSegment(Mapping{contentField: m})
		},
		SegmentContext: func(ctx context.Context) (string, error) {
			var terms int
			err := s.db.QueryRowContext(ctx,
				`SELECT COUNT(DISTINCT term) FROM fts_vocab`).Scan(&terms)
			if err != nil {
				return "", fmt.Errorf("failed to count terms: %w", err)
			}
			return marshalSegment(Context{
				Documents: len(ids),
				Terms:     terms,
				Analyzer:  analyzerConfig(s.Backend(), s.opts),
			})
		},
	}), nil
}

// mapping reads term -> ascending rowids from the vocabulary table.
func (s *SQLiteEngine) mapping(ctx context.Context) (map[string][]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT term, doc FROM fts_vocab ORDER BY term, doc`)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]int)
	for rows.Next() {
		var term string
		var doc int
		if err := rows.Scan(&term, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan vocabulary row: %w", err)
		}
		out[term] = append(out[term], doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vocabulary: %w", err)
	}
	return out, nil
}

// Close implements Engine.
func (s *SQLiteEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Verify interface implementation
var _ Engine = (*SQLiteEngine)(nil)
