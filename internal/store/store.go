package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/pool"
)

// SQLConn is one pooled SQL connection. It wraps a database/sql handle
// capped at a single physical connection, so the pool, not database/sql,
// decides how many connections exist.
type SQLConn struct {
	db      *sql.DB
	dialect *dialect.Dialect
}

// Open connects to dsn with the driver of d and verifies the connection.
func Open(ctx context.Context, d *dialect.Dialect, dsn string) (*SQLConn, error) {
	db, err := openDB(d, dsn)
	if err != nil {
		return nil, &fault.ConnectFailureError{Backend: d.Name, Err: err}
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &fault.ConnectFailureError{Backend: d.Name, Err: err}
	}
	return &SQLConn{db: db, dialect: d}, nil
}

// Dialer returns a pool dialer that opens connections to dsn.
func Dialer(d *dialect.Dialect, dsn string) pool.Dialer {
	return func(ctx context.Context) (pool.Conn, error) {
		return Open(ctx, d, dsn)
	}
}

// Dialect returns the dialect the connection was opened with.
func (c *SQLConn) Dialect() *dialect.Dialect { return c.dialect }

// Ping implements pool.Conn.
func (c *SQLConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the connection.
func (c *SQLConn) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (c *SQLConn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// Exec executes a statement and reports the number of affected rows.
func (c *SQLConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
