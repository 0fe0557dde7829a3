package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"catmigrate/internal"
)

// ConnectionError reports a failure to reach or authenticate against a
// catalog endpoint.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Conn is a dedicated connection to one catalog. It is not shared between
// goroutines.
type Conn struct {
	Params  ConnectionParams
	Dialect Dialect

	db   *sql.DB
	conn *sql.Conn

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// Open connects to the catalog described by p. The returned Conn must be
// closed exactly once by the caller.
func Open(ctx context.Context, p ConnectionParams) (*Conn, error) {
	dialect, err := Lookup(p.DriverName())
	if err != nil {
		return nil, &ConnectionError{Endpoint: p.Endpoint(), Err: err}
	}

	dsn, err := dialect.DSN(p)
	if err != nil {
		return nil, &ConnectionError{Endpoint: p.Endpoint(), Err: fmt.Errorf("failed to build DSN: %w", err)}
	}

	internal.Logger.Debug("Opening catalog connection", "endpoint", p.Endpoint())

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, &ConnectionError{Endpoint: p.Endpoint(), Err: fmt.Errorf("failed to open database: %w", err)}
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, &ConnectionError{Endpoint: p.Endpoint(), Err: err}
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, &ConnectionError{Endpoint: p.Endpoint(), Err: err}
	}

	return &Conn{
		Params:  p,
		Dialect: dialect,
		db:      db,
		conn:    conn,
	}, nil
}

// SQL returns the underlying pinned connection.
func (c *Conn) SQL() *sql.Conn {
	return c.conn
}

// Qualify returns the quoted, fully qualified name of table in this catalog.
func (c *Conn) Qualify(table string) string {
	return Qualify(c.Dialect, c.Params, table)
}

func (c *Conn) TableDDL(ctx context.Context, table string) (string, error) {
	return c.Dialect.TableDDL(ctx, c.conn, c.Params, table)
}

func (c *Conn) Columns(ctx context.Context, table string) ([]string, error) {
	return c.Dialect.Columns(ctx, c.conn, c.Params, table)
}

func (c *Conn) Tables(ctx context.Context) ([]string, error) {
	return c.Dialect.Tables(ctx, c.conn, c.Params)
}

func (c *Conn) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	return c.Dialect.PrimaryKey(ctx, c.conn, c.Params, table)
}

// Close releases the connection and its pool. Calls after the first are
// no-ops returning the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		connErr := c.conn.Close()
		dbErr := c.db.Close()
		c.closed.Store(true)
		if connErr != nil {
			c.closeErr = connErr
		} else {
			c.closeErr = dbErr
		}
		internal.Logger.Debug("Closed catalog connection", "endpoint", c.Params.Endpoint())
	})
	return c.closeErr
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}
