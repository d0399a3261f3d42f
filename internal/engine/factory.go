package engine

import (
	"fmt"
)

// Backend represents the full-text library behind an Engine.
type Backend string

const (
	// BackendBleve uses an in-memory Bleve v2 index (default).
	BackendBleve Backend = "bleve"

	// BackendSQLite uses SQLite FTS5 in an in-memory database.
	BackendSQLite Backend = "sqlite"
)

// New creates an Engine for the named backend.
//
// backend options:
//   - "bleve" (default): Bleve v2 with a custom analyzer
//   - "sqlite": SQLite FTS5 through modernc.org/sqlite (pure Go)
func New(backend string, opts Options) (Engine, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	switch backend {
	case string(BackendBleve), "":
		return NewBleveEngine(opts)
	case string(BackendSQLite):
		return NewSQLiteEngine(opts)
	default:
		return nil, fmt.Errorf("unknown engine backend: %s (valid options: bleve, sqlite)", backend)
	}
}

// ValidBackend reports whether backend names a known engine.
func ValidBackend(backend string) bool {
	switch backend {
	case string(BackendBleve), string(BackendSQLite), "":
		return true
	default:
		return false
	}
}
