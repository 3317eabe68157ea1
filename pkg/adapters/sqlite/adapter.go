package sqlite

import (
	"github.com/leapstack-labs/sqlsandbox/pkg/adapter"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// New resolves the SQLite bundle for cfg. Rows are loaded with prepared
// INSERT statements since the driver has no appender.
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
		dsn = ":memory:"
	}

	return adapter.Bundle{
		Name:    "sqlite",
		Driver:  "sqlite",
		DSN:     dsn,
		Setup:   setup,
		Dialect: Dialect,
	}, nil
}
