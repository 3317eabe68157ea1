package dataset

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferColumns(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		records []core.Record
		want    core.ColumnType
	}{
		{"ints", []core.Record{{"v": 1}, {"v": int64(2)}}, core.TypeBigInt},
		{"floats", []core.Record{{"v": 1.5}}, core.TypeDouble},
		{"ints widen to double", []core.Record{{"v": 1}, {"v": 2.5}}, core.TypeDouble},
		{"bools", []core.Record{{"v": true}, {"v": false}}, core.TypeBoolean},
		{"strings", []core.Record{{"v": "a"}}, core.TypeText},
		{"timestamps", []core.Record{{"v": ts}}, core.TypeTimestamp},
		{"mixed falls back to text", []core.Record{{"v": 1}, {"v": "x"}}, core.TypeText},
		{"bool and int is text", []core.Record{{"v": true}, {"v": 1}}, core.TypeText},
		{"all null is text", []core.Record{{"v": nil}, {}}, core.TypeText},
		{"nulls are skipped", []core.Record{{"v": nil}, {"v": 3}}, core.TypeBigInt},
		{"json numbers", []core.Record{{"v": json.Number("3")}, {"v": json.Number("3.5")}}, core.TypeDouble},
		{"nested values are text", []core.Record{{"v": map[string]any{"a": 1}}}, core.TypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := InferColumns(tt.records, []string{"v"})
			require.Len(t, specs, 1)
			assert.Equal(t, tt.want, specs[0].Type)
		})
	}
}

func TestBuild(t *testing.T) {
	records := []core.Record{
		{"id": 1, "name": "Ada", "score": 91},
		{"id": 2, "score": 77.5, "active": true},
	}

	ds, err := Build("students", records)
	require.NoError(t, err)

	assert.Equal(t, "students", ds.Name)
	assert.Equal(t, []core.ColumnSpec{
		{Name: "active", Type: core.TypeBoolean},
		{Name: "id", Type: core.TypeBigInt},
		{Name: "name", Type: core.TypeText},
		{Name: "score", Type: core.TypeDouble},
	}, ds.Columns)
	assert.Equal(t, [][]any{
		{nil, int64(1), "Ada", float64(91)},
		{true, int64(2), nil, 77.5},
	}, ds.Rows)
}

func TestBuild_ExplicitColumns(t *testing.T) {
	records := []core.Record{
		{"id": 1, "name": "Ada", "ignored": "x"},
		{"id": 2, "name": 42},
	}

	ds, err := Build("people", records, "name", "id")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "id"}, ds.ColumnNames())
	assert.Equal(t, core.TypeText, ds.Columns[0].Type)
	assert.Equal(t, [][]any{{"Ada", int64(1)}, {"42", int64(2)}}, ds.Rows)
}

func TestBuild_InvalidColumns(t *testing.T) {
	records := []core.Record{{"id": 1}}

	_, err := Build("t", records, "id", "id")
	assert.ErrorContains(t, err, "duplicate column")

	_, err = Build("t", records, "")
	assert.ErrorContains(t, err, "must not be empty")

	_, err = Build("t", []core.Record{{}})
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestCoerce(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   any
		typ     core.ColumnType
		want    any
		wantErr bool
	}{
		{"nil", nil, core.TypeBigInt, nil, false},
		{"int to bigint", 7, core.TypeBigInt, int64(7), false},
		{"int to double", 7, core.TypeDouble, float64(7), false},
		{"json number to bigint", json.Number("12"), core.TypeBigInt, int64(12), false},
		{"bool to text", true, core.TypeText, "true", false},
		{"float to text", 2.5, core.TypeText, "2.5", false},
		{"time to text", ts, core.TypeText, "2024-03-01T12:00:00Z", false},
		{"slice to text", []any{1, "a"}, core.TypeText, `[1,"a"]`, false},
		{"string to bigint", "x", core.TypeBigInt, nil, true},
		{"string to boolean", "true", core.TypeBoolean, nil, true},
		{"uint64 overflow", uint64(1 << 63), core.TypeBigInt, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.value, tt.typ)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
