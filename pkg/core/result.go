package core

import (
	"encoding/json"
	"time"
)

// Field describes one column of a query result as reported by the engine.
type Field struct {
	Name         string `json:"name"`
	DatabaseType string `json:"type"`
	Nullable     *bool  `json:"nullable,omitempty"`
	ScanType     string `json:"scanType,omitempty"`
}

// QueryResult is the row-oriented shape of a query result.
type QueryResult struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"rowCount"`
}

// Outcome is the result of one execution attempt. Exactly one of Result
// (Success) or Error (!Success) is meaningful.
type Outcome struct {
	Success bool
	Result  *QueryResult
	Schema  []Field
	Error   string
	Reason  Reason
	Elapsed time.Duration
}

// Succeeded builds a successful outcome.
func Succeeded(result *QueryResult, schema []Field, elapsed time.Duration) Outcome {
	return Outcome{
		Success: true,
		Result:  result,
		Schema:  schema,
		Elapsed: elapsed,
	}
}

// Failed builds a failed outcome from an error.
func Failed(err error, elapsed time.Duration) Outcome {
	return Outcome{
		Success: false,
		Error:   MessageOf(err),
		Reason:  ReasonOf(err),
		Elapsed: elapsed,
	}
}

// ExecutionTimeMs returns the elapsed time in fractional milliseconds.
func (o Outcome) ExecutionTimeMs() float64 {
	return float64(o.Elapsed) / float64(time.Millisecond)
}

type outcomeJSON struct {
	Success         bool         `json:"success"`
	Result          *QueryResult `json:"result,omitempty"`
	Schema          []Field      `json:"schema,omitempty"`
	Error           string       `json:"error,omitempty"`
	Reason          Reason       `json:"reason,omitempty"`
	ExecutionTimeMs float64      `json:"executionTimeMs"`
}

// MarshalJSON renders the outcome in the shape consumed by the sandbox UI.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{
		Success:         o.Success,
		Result:          o.Result,
		Schema:          o.Schema,
		Error:           o.Error,
		Reason:          o.Reason,
		ExecutionTimeMs: o.ExecutionTimeMs(),
	})
}
