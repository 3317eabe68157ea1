// Package core defines the shared language of the sqlsandbox system.
//
// This package contains:
//   - Query results (QueryResult, Outcome, Field)
//   - Failure reasons shared by the engine, the facade and the hosts
//   - Fixture and dataset descriptions (TableFixture, Dataset)
//   - SQL identifier and literal quoting
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
