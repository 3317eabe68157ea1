//go:build cgo

package duckdb

import "github.com/leapstack-labs/sqlsandbox/pkg/adapter"

func init() {
	adapter.Register("duckdb", New)
}
