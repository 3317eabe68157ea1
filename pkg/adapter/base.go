package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlsandbox/pkg/core"
)

// DropTableSQL returns the statement dropping table if it exists.
func DropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + core.QuoteIdent(table)
}

// CreateTableSQL returns the CREATE TABLE statement for a dataset's columns.
func CreateTableSQL(ds core.Dataset) string {
	cols := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		cols[i] = core.QuoteIdent(c.Name) + " " + c.Type.Keyword()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", core.QuoteIdent(ds.Name), strings.Join(cols, ", "))
}

// InsertSQL returns a parameterized INSERT for every column of ds.
func InsertSQL(ds core.Dataset) string {
	placeholders := make([]string, len(ds.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		core.QuoteIdent(ds.Name),
		core.QuoteIdents(ds.ColumnNames()),
		strings.Join(placeholders, ", "))
}

// InsertRows loads ds.Rows with one prepared INSERT inside a transaction.
// Bundles without a native appender use this.
func InsertRows(ctx context.Context, conn *sql.Conn, ds core.Dataset) error {
	if conn == nil {
		return fmt.Errorf("database connection not established")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, InsertSQL(ds))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range ds.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load transaction: %w", err)
	}
	return nil
}
