// Package main provides the sqlsandbox CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlsandbox/internal/cli"

	// Engine bundles. DuckDB registers itself only in cgo builds.
	_ "github.com/leapstack-labs/sqlsandbox/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/sqlsandbox/pkg/adapters/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
