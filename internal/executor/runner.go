package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tidelake/tidelake/pkg/types"
)

// Runner executes one query and produces its rows. Implementations must
// honor context cancellation.
type Runner interface {
	Run(ctx context.Context, query *types.Query) (*types.QueryResult, error)
}

// simulatedRunner models execution latency without touching real data.
// It is the default runner for pools that only schedule.
type simulatedRunner struct {
	// latency per query; zero means a small fixed delay.
	latency time.Duration
}

func (r *simulatedRunner) Run(ctx context.Context, query *types.Query) (*types.QueryResult, error) {
	latency := r.latency
	if latency <= 0 {
		latency = 5 * time.Millisecond
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(latency):
	}

	return &types.QueryResult{
		QueryID: query.ID,
		Rows: []map[string]interface{}{
			{"query_id": query.ID, "status": "ok"},
		},
		RowCount: 1,
	}, nil
}

// SQLiteRunner executes SQL against a SQLite database, letting pools run
// real queries over materialized partition data.
type SQLiteRunner struct {
	db *sql.DB
}

// NewSQLiteRunner opens a SQLite database at path. ":memory:" with a
// shared cache works for tests and scratch execution.
func NewSQLiteRunner(path string) (*SQLiteRunner, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("executor: failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("executor: failed to ping sqlite database: %w", err)
	}
	return &SQLiteRunner{db: db}, nil
}

// DB exposes the underlying handle so callers can load data.
func (r *SQLiteRunner) DB() *sql.DB {
	return r.db
}

// Run executes the query's SQL and collects every row as a column map.
func (r *SQLiteRunner) Run(ctx context.Context, query *types.Query) (*types.QueryResult, error) {
	rows, err := r.db.QueryContext(ctx, query.SQL)
	if err != nil {
		return nil, fmt.Errorf("executor: query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("executor: failed to read columns: %w", err)
	}

	result := &types.QueryResult{QueryID: query.ID}
	values := make([]interface{}, len(columns))
	scanners := make([]interface{}, len(columns))
	for i := range values {
		scanners[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanners...); err != nil {
			return nil, fmt.Errorf("executor: failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("executor: row iteration failed: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// Close releases the database handle.
func (r *SQLiteRunner) Close() error {
	return r.db.Close()
}
