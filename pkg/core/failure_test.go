package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"nil", nil, ""},
		{"failure", &Failure{Reason: ReasonEmptyDataset}, ReasonEmptyDataset},
		{"wrapped failure", fmt.Errorf("outer: %w", NotReady("execute")), ReasonNotReady},
		{"bare not ready", ErrNotReady, ReasonNotReady},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ReasonTimeout},
		{"canceled", context.Canceled, ReasonCanceled},
		{"anything else", errors.New("syntax error"), ReasonQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReasonOf(tt.err))
		})
	}
}

func TestFailure_Error(t *testing.T) {
	tests := []struct {
		name    string
		failure *Failure
		want    string
	}{
		{
			name:    "op and table",
			failure: &Failure{Op: "load dataset", Table: "users", Reason: ReasonEmptyDataset, Err: ErrEmptyDataset},
			want:    "load dataset users: dataset has no rows",
		},
		{
			name:    "op only",
			failure: NotReady("execute"),
			want:    "execute: Database not ready",
		},
		{
			name:    "reason fallback",
			failure: &Failure{Reason: ReasonTerminated},
			want:    "terminated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.failure.Error())
		})
	}
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "Database not ready", MessageOf(NotReady("execute")))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
	assert.Equal(t, "", MessageOf(nil))
}

func TestFail(t *testing.T) {
	assert.NoError(t, Fail("reset", ReasonQueryFailed, nil))

	err := Fail("reset", ReasonQueryFailed, errors.New("table locked"))
	var f *Failure
	assert.ErrorAs(t, err, &f)
	assert.Equal(t, "reset", f.Op)
	assert.Equal(t, ReasonQueryFailed, ReasonOf(err))
}
