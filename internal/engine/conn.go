package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
)

// ErrClosed is returned by Conn methods after Close.
var ErrClosed = errors.New("engine connection closed")

// JobFunc runs on the connection's worker goroutine.
type JobFunc func(ctx context.Context, c *sqlx.Conn) error

type job struct {
	ctx  context.Context
	fn   JobFunc
	done chan error
}

// Conn is the engine's single connection, owned by a worker goroutine.
// Jobs run one at a time in hand-off order.
type Conn struct {
	conn   *sqlx.Conn
	logger *slog.Logger

	jobs    chan job
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newConn(c *sqlx.Conn, logger *slog.Logger) *Conn {
	cn := &Conn{
		conn:    c,
		logger:  logger,
		jobs:    make(chan job),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go cn.run()
	return cn
}

func (c *Conn) run() {
	defer close(c.stopped)
	for {
		select {
		case j := <-c.jobs:
			j.done <- c.exec(j)
		case <-c.quit:
			return
		}
	}
}

func (c *Conn) exec(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("engine job panicked", "panic", r)
			err = fmt.Errorf("engine job panicked: %v", r)
		}
	}()
	return j.fn(j.ctx, c.conn)
}

// Do hands fn to the worker and waits for it. It returns ctx.Err() or
// ErrClosed when the job could not be handed off; a job that was handed off
// always runs to completion, with ctx passed to the driver.
func (c *Conn) Do(ctx context.Context, fn JobFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}

	done := make(chan error, 1)
	select {
	case c.jobs <- job{ctx: ctx, fn: fn, done: done}:
	case <-c.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-done
}

// Query runs query and collects the full result in columnar form.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*Columnar, error) {
	var out *Columnar
	err := c.Do(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		out, err = collect(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Exec runs a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) error {
	return c.Do(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
}

// Select runs query and scans all rows into dest, a pointer to a slice.
func (c *Conn) Select(ctx context.Context, dest any, query string, args ...any) error {
	return c.Do(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, dest, query, args...)
	})
}

// Close stops the worker after its current job and closes the connection.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.quit)
		<-c.stopped
		err = c.conn.Close()
		if errors.Is(err, sql.ErrConnDone) {
			err = nil
		}
	})
	return err
}

// Columnar is a query result in column-major form: one vector per field.
type Columnar struct {
	Fields  []core.Field
	Vectors [][]any
	Len     int
}

// Value returns the cell of field f in row r.
func (c *Columnar) Value(f, r int) any {
	return c.Vectors[f][r]
}

func collect(rows *sql.Rows) (*Columnar, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read result schema: %w", err)
	}

	out := &Columnar{
		Fields:  make([]core.Field, len(types)),
		Vectors: make([][]any, len(types)),
	}
	for i, ct := range types {
		f := core.Field{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
		}
		if nullable, ok := ct.Nullable(); ok {
			f.Nullable = &nullable
		}
		if st := ct.ScanType(); st != nil {
			f.ScanType = st.String()
		}
		out.Fields[i] = f
	}

	values := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", out.Len, err)
		}
		for i, v := range values {
			out.Vectors[i] = append(out.Vectors[i], v)
		}
		out.Len++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
