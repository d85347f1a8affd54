package db

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
)

// SQLDB adapts a database/sql pool to Querier
type SQLDB struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewSQLDB wraps an open *sql.DB. The SQLDB takes ownership of the pool.
func NewSQLDB(db *sql.DB) *SQLDB {
	return &SQLDB{db: db}
}

// Query runs a query and buffers every row
func (s *SQLDB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, Row(values))
	}

	return result, rows.Err()
}

// Execute runs a statement. LastInsertID is zero when the driver cannot report it.
func (s *SQLDB) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}

	var out Result
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

// Scalar returns the first column of the first row
func (s *SQLDB) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	row, err := Single(ctx, s, query, args...)
	if err != nil || len(row) == 0 {
		return nil, err
	}
	return row[0], nil
}

// Ping verifies the pool can reach the database
func (s *SQLDB) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return errors.New("database pool is closed")
	}
	return s.db.PingContext(ctx)
}

// Ready reports whether the pool is open
func (s *SQLDB) Ready() bool {
	return !s.closed.Load()
}

// Close closes the pool; closing twice is a no-op
func (s *SQLDB) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *SQLDB) GetDB() *sql.DB {
	return s.db
}
