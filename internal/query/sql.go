package query

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver (cgo)
	_ "modernc.org/sqlite"          // sqlite driver (pure Go)

	"github.com/Aman-CERP/localsearch/internal/document"
)

// SQLEngine runs queries through database/sql.
type SQLEngine struct {
	db     *sql.DB
	driver string
}

// NewSQLEngine opens a connection pool. No connection is made until the first
// query.
func NewSQLEngine(driver, dsn string) (*SQLEngine, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver != DriverPostgres {
		// Single connection so that :memory: databases stay one database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	return &SQLEngine{db: db, driver: driver}, nil
}

// Execute implements Engine. Data is a []any of rows, each a map of column
// name to value.
func (e *SQLEngine) Execute(ctx context.Context, query string) document.Result {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return failed(fmt.Errorf("%s query: %w", e.driver, err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return failed(fmt.Errorf("failed to read columns: %w", err))
	}

	data := make([]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return failed(fmt.Errorf("failed to scan row: %w", err))
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return failed(fmt.Errorf("failed to iterate rows: %w", err))
	}

	return document.Result{Data: data}
}

// Ping verifies the database is reachable.
func (e *SQLEngine) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s ping: %w", e.driver, err)
	}
	return nil
}

// Close implements Engine.
func (e *SQLEngine) Close() error {
	return e.db.Close()
}

// Verify interface implementation
var _ Engine = (*SQLEngine)(nil)
