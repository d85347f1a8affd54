// Package db provides the query interface the reconciliation engine runs SQL
// through, with one pool-owning client per supported driver.
package db

import (
	"context"
	"fmt"
	"time"
)

// Querier executes SQL. The engine only ever needs these three shapes.
type Querier interface {
	// Query runs a parameterized query and returns all rows
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	// Execute runs a parameterized statement
	Execute(ctx context.Context, query string, args ...any) (Result, error)
	// Scalar returns the first column of the first row, or nil when there is
	// no row or the value is SQL NULL
	Scalar(ctx context.Context, query string, args ...any) (any, error)
}

// Conn is a Querier that owns a connection pool
type Conn interface {
	Querier
	Ping(ctx context.Context) error
	Ready() bool
	Close() error
}

// Row holds the values of one result row in column order. Text values are
// always returned as string, never []byte.
type Row []any

// Result describes the effect of a statement
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// PoolOptions configures the connection pool of a client
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolOptions returns the pool settings used when none are configured
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns:   10,
		ConnectTimeout: 60 * time.Second,
	}
}

// Single returns the first row of a query, or nil when there is none
func Single(ctx context.Context, q Querier, query string, args ...any) (Row, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Exists reports whether a query returns at least one row
func Exists(ctx context.Context, q Querier, query string, args ...any) (bool, error) {
	row, err := Single(ctx, q, query, args...)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

// Insert runs an INSERT and returns the generated id, where the driver reports one
func Insert(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	res, err := q.Execute(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// Update runs a statement and returns the number of affected rows
func Update(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	res, err := q.Execute(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// ScalarString runs a scalar query and returns its value as a string.
// ok is false when the value is NULL or there is no row.
func ScalarString(ctx context.Context, q Querier, query string, args ...any) (value string, ok bool, err error) {
	v, err := q.Scalar(ctx, query, args...)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return toString(v), true, nil
}

// Strings returns the first column of each row as a string
func Strings(rows []Row) ([]string, error) {
	out := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 || row[0] == nil {
			return nil, fmt.Errorf("row %d has no value in the first column", i)
		}
		out = append(out, toString(row[0]))
	}
	return out, nil
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}
