package db

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresClient manages the connection pool to PostgreSQL
type PostgresClient struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// NewPostgresClient creates a pool for connString and pings it
func NewPostgresClient(ctx context.Context, connString string, opts PoolOptions) (*PostgresClient, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		cfg.MaxConns = int32(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = opts.ConnMaxLifetime
	}
	if opts.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{pool: pool}, nil
}

// Query runs a query and buffers every row
func (c *PostgresClient) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		result = append(result, Row(values))
	}

	return result, rows.Err()
}

// Execute runs a statement. PostgreSQL does not report insert ids.
func (c *PostgresClient) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	return Result{RowsAffected: tag.RowsAffected()}, nil
}

// Scalar returns the first column of the first row
func (c *PostgresClient) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	row, err := Single(ctx, c, query, args...)
	if err != nil || len(row) == 0 {
		return nil, err
	}
	return row[0], nil
}

// Ping verifies the pool can reach the database
func (c *PostgresClient) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New("database pool is closed")
	}
	return c.pool.Ping(ctx)
}

// Ready reports whether the pool is open
func (c *PostgresClient) Ready() bool {
	return !c.closed.Load()
}

// Close closes the pool; closing twice is a no-op
func (c *PostgresClient) Close() error {
	if !c.closed.Swap(true) {
		c.pool.Close()
	}
	return nil
}

// GetPool returns the underlying pool
func (c *PostgresClient) GetPool() *pgxpool.Pool {
	return c.pool
}
