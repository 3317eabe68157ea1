// Package duckdb provides the DuckDB execution bundle for sqlsandbox.
//
// The bundle registers itself only in cgo builds, since the engine is linked
// from the DuckDB C library. Import it with a blank identifier:
//
//	import _ "github.com/leapstack-labs/sqlsandbox/pkg/adapters/duckdb"
package duckdb

import "github.com/leapstack-labs/sqlsandbox/pkg/adapter"

// Dialect holds DuckDB's catalog queries.
var Dialect = &adapter.Dialect{
	Name: "duckdb",
	ListTables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`,
	DescribeTable: `
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ?
		ORDER BY ordinal_position
	`,
	ForeignKeys: `
		SELECT table_name, referenced_table
		FROM duckdb_constraints()
		WHERE constraint_type = 'FOREIGN KEY' AND schema_name = current_schema()
	`,
}
