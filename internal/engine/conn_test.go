package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/leapstack-labs/sqlsandbox/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockConn(t *testing.T) (*Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	xdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { _ = xdb.Close() })

	xconn, err := xdb.Connx(context.Background())
	require.NoError(t, err)

	c := newConn(xconn, testutil.NewTestLogger(t))
	t.Cleanup(func() { _ = c.Close() })
	return c, mock
}

func TestConn_Query(t *testing.T) {
	c, mock := newMockConn(t)
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(
		sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)).Nullable(false),
			sqlmock.NewColumn("name").OfType("VARCHAR", "").Nullable(true),
		).
			AddRow(int64(1), "Ada").
			AddRow(int64(2), nil),
	)

	res, err := c.Query(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)

	require.Len(t, res.Fields, 2)
	assert.Equal(t, "id", res.Fields[0].Name)
	assert.Equal(t, "name", res.Fields[1].Name)
	assert.Equal(t, "BIGINT", res.Fields[0].DatabaseType)
	assert.Equal(t, "VARCHAR", res.Fields[1].DatabaseType)
	assert.Equal(t, "int64", res.Fields[0].ScanType)
	assert.Equal(t, 2, res.Len)
	assert.Equal(t, []any{int64(1), int64(2)}, res.Vectors[0])
	assert.Equal(t, []any{"Ada", nil}, res.Vectors[1])
	assert.Equal(t, "Ada", res.Value(1, 0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_QueryEmptyResult(t *testing.T) {
	c, mock := newMockConn(t)
	mock.ExpectQuery("SELECT id FROM users WHERE false").
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(sqlmock.NewColumn("id").OfType("BIGINT", int64(0))))

	res, err := c.Query(context.Background(), "SELECT id FROM users WHERE false")
	require.NoError(t, err)
	assert.Len(t, res.Fields, 1)
	assert.Equal(t, 0, res.Len)
}

func TestConn_QueryError(t *testing.T) {
	c, mock := newMockConn(t)
	mock.ExpectQuery("SELEC 1").WillReturnError(errors.New(`syntax error at or near "SELEC"`))

	_, err := c.Query(context.Background(), "SELEC 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")

	mock.ExpectExec("CREATE TABLE t (x INT)").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, c.Exec(context.Background(), "CREATE TABLE t (x INT)"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_JobsRunSequentially(t *testing.T) {
	c, _ := newMockConn(t)
	ctx := context.Background()

	var running, maxRunning int
	var order []int
	errc := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			errc <- c.Do(ctx, func(context.Context, *sqlx.Conn) error {
				running++
				if running > maxRunning {
					maxRunning = running
				}
				time.Sleep(time.Millisecond)
				order = append(order, i)
				running--
				return nil
			})
		}(i)
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errc)
	}
	assert.Equal(t, 1, maxRunning)
	assert.Len(t, order, 8)
}

func TestConn_DoCanceledBeforeHandOff(t *testing.T) {
	c, _ := newMockConn(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := c.Do(ctx, func(context.Context, *sqlx.Conn) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestConn_PanicIsReturned(t *testing.T) {
	c, _ := newMockConn(t)

	err := c.Do(context.Background(), func(context.Context, *sqlx.Conn) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	require.NoError(t, c.Do(context.Background(), func(context.Context, *sqlx.Conn) error { return nil }))
}

func TestConn_Close(t *testing.T) {
	c, _ := newMockConn(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Exec(context.Background(), "SELECT 1"), ErrClosed)
}
