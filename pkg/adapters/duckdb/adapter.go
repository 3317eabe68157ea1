//go:build cgo

package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/leapstack-labs/sqlsandbox/pkg/adapter"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	goduckdb "github.com/marcboeker/go-duckdb"
)

// New resolves the DuckDB bundle for cfg.
// An empty path or ":memory:" keeps the database in memory.
func New(cfg adapter.Config) (adapter.Bundle, error) {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return adapter.Bundle{}, err
	}
	setup, err := params.Statements()
	if err != nil {
		return adapter.Bundle{}, err
	}

	dsn := cfg.Path
	if cfg.InMemory() {
		dsn = ""
	}

	return adapter.Bundle{
		Name:    "duckdb",
		Driver:  "duckdb",
		DSN:     dsn,
		Setup:   setup,
		Dialect: Dialect,
		Append:  appendRows,
	}, nil
}

// appendRows loads a dataset through DuckDB's Appender, bypassing the SQL
// parser. Row values must already match the column types.
func appendRows(ctx context.Context, conn *sql.Conn, ds core.Dataset) error {
	return conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}

		app, err := goduckdb.NewAppenderFromConn(dc, "", ds.Name)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}

		values := make([]driver.Value, len(ds.Columns))
		for i, row := range ds.Rows {
			if err := ctx.Err(); err != nil {
				_ = app.Close()
				return err
			}
			for j := range values {
				values[j] = row[j]
			}
			if err := app.AppendRow(values...); err != nil {
				_ = app.Close()
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}

		if err := app.Close(); err != nil {
			return fmt.Errorf("failed to flush appender: %w", err)
		}
		return nil
	})
}
