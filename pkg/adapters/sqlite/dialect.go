// Package sqlite provides the pure-Go SQLite execution bundle for sqlsandbox.
//
// It is always available, so it is the fallback when the binary is built
// without cgo. Import it with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/sqlsandbox/pkg/adapters/sqlite"
package sqlite

import "github.com/leapstack-labs/sqlsandbox/pkg/adapter"

// Dialect holds SQLite's catalog queries.
var Dialect = &adapter.Dialect{
	Name: "sqlite",
	ListTables: `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`,
	DescribeTable: `
		SELECT
			name AS column_name,
			type AS data_type,
			CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END AS is_nullable,
			cid + 1 AS ordinal_position
		FROM pragma_table_info(?)
		ORDER BY cid
	`,
	ForeignKeys: `
		SELECT m.name AS table_name, f."table" AS referenced_table
		FROM sqlite_master m, pragma_foreign_key_list(m.name) f
		WHERE m.type = 'table'
	`,
}
