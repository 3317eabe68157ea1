package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	input := "id, name, score, passed\n1,Ada,91.5,true\n2,,48,FALSE\n"

	records, columns, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score", "passed"}, columns)
	assert.Equal(t, []core.Record{
		{"id": int64(1), "name": "Ada", "score": 91.5, "passed": true},
		{"id": int64(2), "name": nil, "score": int64(48), "passed": false},
	}, records)
}

func TestParseCSV_Errors(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader(""))
	assert.ErrorContains(t, err, "no header row")

	_, _, err = ParseCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.ErrorContains(t, err, "failed to read csv")
}

func TestParseJSON(t *testing.T) {
	input := `[{"id": 1, "price": 9.99, "tags": ["a"], "note": null}, {"id": 9007199254740993}]`

	records, err := ParseJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(1), records[0]["id"])
	assert.Equal(t, 9.99, records[0]["price"])
	assert.Equal(t, []any{"a"}, records[0]["tags"])
	assert.Nil(t, records[0]["note"])
	assert.Equal(t, int64(9007199254740993), records[1]["id"])

	_, err = ParseJSON(strings.NewReader(`{"id": 1}`))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,total\n1,10.5\n"), 0o600))
	jsonPath := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":1}]`), 0o600))

	records, columns, err := ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "total"}, columns)
	assert.Len(t, records, 1)
	assert.Equal(t, "orders", TableName(csvPath))

	records, columns, err = ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Nil(t, columns)
	assert.Len(t, records, 1)

	_, _, err = ReadFile(filepath.Join(dir, "data.parquet"))
	assert.ErrorContains(t, err, "unsupported dataset file")
}
