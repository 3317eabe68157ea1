// Package adapter defines execution bundles: the engine binaries a sandbox
// session can boot, together with the catalog dialect and bulk loader each
// one needs.
//
// Concrete bundles live in pkg/adapters/ subdirectories and register
// themselves from init(). The lifecycle manager resolves one bundle per
// engine instantiation.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/sqlsandbox/pkg/core"
)

// Config selects and parameterizes a bundle.
type Config struct {
	// Type is the bundle name (e.g., "duckdb", "sqlite"). Empty selects the
	// first bundle compiled into this binary, in preference order.
	Type string

	// Path is the database file. Empty or ":memory:" keeps the engine in memory.
	Path string

	// Params holds bundle-specific settings (threads, extensions, pragmas...).
	Params map[string]any
}

// InMemory reports whether the config describes a volatile database.
func (c Config) InMemory() bool {
	return c.Path == "" || c.Path == ":memory:"
}

// Bundle is a resolved engine: what to open, how to prepare the single
// connection, and how to talk to its catalog.
type Bundle struct {
	// Name is the registry name of the bundle.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	// DSN is the data source handed to the driver.
	DSN string

	// Setup statements run once on the connection right after it is opened.
	Setup []string

	// Dialect describes the catalog queries of the engine.
	Dialect *Dialect

	// Append bulk-loads dataset rows into an existing table. Nil falls back
	// to parameterized INSERT statements.
	Append AppendFunc
}

// AppendFunc bulk-loads ds.Rows into the already created table ds.Name.
type AppendFunc func(ctx context.Context, conn *sql.Conn, ds core.Dataset) error

// Dialect holds the engine-specific catalog queries.
type Dialect struct {
	Name string

	// ListTables returns one column with the names of all base tables.
	ListTables string

	// DescribeTable takes the table name as its only argument and returns
	// column_name, data_type, is_nullable ('YES'/'NO') and ordinal_position.
	DescribeTable string

	// ForeignKeys returns table_name and referenced_table for every foreign
	// key. Optional; without it tables are dropped in name order.
	ForeignKeys string
}

// Factory builds a bundle from config.
type Factory func(cfg Config) (Bundle, error)
