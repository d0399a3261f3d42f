// Package query executes the content query of a named index against an
// external data source and returns the raw result shape normalizers consume.
package query

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/localsearch/internal/document"
)

// Source types.
const (
	SourceSQL  = "sql"
	SourceFile = "file"
)

// SQL drivers.
const (
	DriverSQLite   = "sqlite"   // modernc.org/sqlite, pure Go
	DriverSQLite3  = "sqlite3"  // mattn/go-sqlite3, requires cgo
	DriverPostgres = "postgres" // lib/pq
)

// Engine executes a query string.
// Failures are reported inside the Result, never as a Go error, so that the
// caller decides between aborting and continuing.
type Engine interface {
	Execute(ctx context.Context, query string) document.Result
	Close() error
}

// SourceConfig selects the data source of an index.
type SourceConfig struct {
	Type   string `yaml:"type" json:"type"`
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// ValidDriver reports whether driver is supported.
func ValidDriver(driver string) bool {
	switch driver {
	case DriverSQLite, DriverSQLite3, DriverPostgres:
		return true
	default:
		return false
	}
}

// New creates the engine for cfg. Relative paths (file queries, SQLite
// databases) resolve against baseDir.
func New(cfg SourceConfig, baseDir string) (Engine, error) {
	switch cfg.Type {
	case SourceSQL:
		driver := cfg.Driver
		if driver == "" {
			driver = DriverSQLite
		}
		if !ValidDriver(driver) {
			return nil, fmt.Errorf("unknown sql driver: %s (valid options: sqlite, sqlite3, postgres)", driver)
		}
		return NewSQLEngine(driver, resolveDSN(driver, cfg.DSN, baseDir))
	case SourceFile, "":
		return NewFileEngine(baseDir), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s (valid options: sql, file)", cfg.Type)
	}
}

// LocalFile returns the local file a source reads for query, or "" when the
// source is remote or in memory.
func LocalFile(cfg SourceConfig, query, baseDir string) string {
	switch cfg.Type {
	case SourceFile, "":
		return NewFileEngine(baseDir).Path(query)
	case SourceSQL:
		if cfg.Driver == DriverPostgres {
			return ""
		}
		dsn := resolveDSN(DriverSQLite, cfg.DSN, baseDir)
		if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
			return ""
		}
		return dsn
	default:
		return ""
	}
}

// resolveDSN makes a relative SQLite database path absolute.
func resolveDSN(driver, dsn, baseDir string) string {
	if driver == DriverPostgres || baseDir == "" {
		return dsn
	}
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") || filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(baseDir, dsn)
}

func failed(err error) document.Result {
	return document.Result{Errors: []error{err}}
}
