package sqlite

import "github.com/leapstack-labs/sqlsandbox/pkg/adapter"

func init() {
	adapter.Register("sqlite", New)
}
