package core

import (
	"context"
	"errors"
	"fmt"
)

// Reason classifies why a sandbox operation failed.
type Reason string

// Failure reasons.
const (
	ReasonNotReady      Reason = "not_ready"
	ReasonInvalidInput  Reason = "invalid_input"
	ReasonEmptyDataset  Reason = "empty_dataset"
	ReasonQueryFailed   Reason = "query_failed"
	ReasonTimeout       Reason = "timeout"
	ReasonCanceled      Reason = "canceled"
	ReasonTerminated    Reason = "terminated"
	ReasonEngineFailure Reason = "engine_failure"
)

// ErrNotReady is reported when an operation needs a connection that has not
// been initialized yet.
//
//nolint:staticcheck // message is shown to users verbatim
var ErrNotReady = errors.New("Database not ready")

// ErrEmptyDataset is reported when a dataset load is attempted with no rows.
var ErrEmptyDataset = errors.New("dataset has no rows")

// Failure is the error type returned by sandbox operations.
type Failure struct {
	Op     string
	Reason Reason
	Table  string
	Err    error
}

func (f *Failure) Error() string {
	msg := string(f.Reason)
	if f.Err != nil {
		msg = f.Err.Error()
	}
	switch {
	case f.Op != "" && f.Table != "":
		return fmt.Sprintf("%s %s: %s", f.Op, f.Table, msg)
	case f.Op != "":
		return fmt.Sprintf("%s: %s", f.Op, msg)
	default:
		return msg
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NotReady returns the failure reported when op runs without a connection.
func NotReady(op string) *Failure {
	return &Failure{Op: op, Reason: ReasonNotReady, Err: ErrNotReady}
}

// Fail wraps err with op and reason. A nil err yields nil.
func Fail(op string, reason Reason, err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Op: op, Reason: reason, Err: err}
}

// ReasonOf classifies err. Context errors are recognized even when they are
// not wrapped in a Failure.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) && f.Reason != "" {
		return f.Reason
	}
	switch {
	case errors.Is(err, ErrNotReady):
		return ReasonNotReady
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonQueryFailed
	}
}

// MessageOf returns the user-facing message for err: the innermost message
// of a Failure, without the operation prefix.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) && f.Err != nil {
		return f.Err.Error()
	}
	return err.Error()
}
