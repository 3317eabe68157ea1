package commands

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlsandbox/internal/cli/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/sqlsandbox/pkg/adapters/sqlite"
)

// execute runs cmd from inside a fresh test project and returns stdout and
// stderr separately.
func execute(t *testing.T, cmd *cobra.Command, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	dir, _ := testutil.SetupTestProject(t)
	t.Chdir(dir)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestQueryCommand(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		wantErr string
	}{
		{
			name: "argument",
			args: []string{"-f", "csv", "SELECT 1 AS one"},
			want: "one\n1\n",
		},
		{
			name:  "stdin",
			stdin: "SELECT 'piped' AS source",
			args:  []string{"-f", "csv"},
			want:  "source\npiped\n",
		},
		{
			name: "fixture",
			args: []string{"-f", "csv", "--fixture", "shop", "SELECT name FROM customers ORDER BY id"},
			want: "name\nAda\nGrace\n",
		},
		{
			name: "load dataset",
			args: []string{"-f", "csv", "--load", "data/sales.csv", "SELECT SUM(amount) AS total FROM sales"},
			want: "total\n42\n",
		},
		{
			name: "load with table name",
			args: []string{"-f", "csv", "-l", "s=data/sales.csv", "SELECT COUNT(*) AS n FROM s"},
			want: "n\n2\n",
		},
		{
			name:    "unknown fixture",
			args:    []string{"--fixture", "nope", "SELECT 1"},
			wantErr: `fixture set "nope" not found`,
		},
		{
			name:    "failing query",
			args:    []string{"-f", "csv", "SELECT * FROM missing_table"},
			wantErr: "missing_table",
		},
		{
			name:    "blank input",
			stdin:   "   \n",
			args:    nil,
			wantErr: "no SQL to run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdin io.Reader
			if tt.stdin != "" {
				stdin = strings.NewReader(tt.stdin)
			}
			out, _, err := execute(t, NewQueryCommand(), stdin, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestQueryCommand_JSONFailure(t *testing.T) {
	out, _, err := execute(t, NewQueryCommand(), nil, "-f", "json", "SELEC 1")
	require.Error(t, err)
	assert.Contains(t, out, `"reason": "query_failed"`)
}

func TestQueryCommand_InputFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "q.sql", "SELECT 7 AS seven")
	out, _, err := execute(t, NewQueryCommand(), nil, "-f", "csv", "--input", path)
	require.NoError(t, err)
	assert.Equal(t, "seven\n7\n", out)
}

func TestFixtureCommand(t *testing.T) {
	t.Run("list json", func(t *testing.T) {
		out, _, err := execute(t, NewFixtureCommand(), nil, "list", "-f", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "shop"`)
		assert.Contains(t, out, `"customers"`)
	})

	t.Run("list csv", func(t *testing.T) {
		out, _, err := execute(t, NewFixtureCommand(), nil, "list", "-f", "csv")
		require.NoError(t, err)
		assert.Equal(t, "name,tables,description\nshop,\"customers, orders\",Customers and their orders\n", out)
	})

	t.Run("sql", func(t *testing.T) {
		out, _, err := execute(t, NewFixtureCommand(), nil, "sql", "shop")
		require.NoError(t, err)
		assert.Contains(t, out, "CREATE TABLE")
		assert.Contains(t, out, "customers")
	})

	t.Run("sql unknown", func(t *testing.T) {
		_, _, err := execute(t, NewFixtureCommand(), nil, "sql", "nope")
		assert.EqualError(t, err, `fixture set "nope" not found`)
	})

	t.Run("sql without name", func(t *testing.T) {
		_, _, err := execute(t, NewFixtureCommand(), nil, "sql")
		assert.EqualError(t, err, "name a fixture set or pass --file")
	})

	t.Run("check configured", func(t *testing.T) {
		_, errOut, err := execute(t, NewFixtureCommand(), nil, "check")
		require.NoError(t, err)
		assert.Contains(t, errOut, "shop (2 tables)")
	})

	t.Run("check invalid file", func(t *testing.T) {
		bad := testutil.WriteFile(t, t.TempDir(), "bad.yaml", "name: bad\ntables: []\n")
		_, _, err := execute(t, NewFixtureCommand(), nil, "check", bad)
		assert.EqualError(t, err, "1 of 1 fixture files are invalid")
	})
}

func TestParseLoadSpec(t *testing.T) {
	tests := []struct {
		spec, table, path string
	}{
		{"sales=data/sales.csv", "sales", "data/sales.csv"},
		{"data/sales.csv", "sales", "data/sales.csv"},
		{"=data/sales.csv", "sales", "=data/sales.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			table, path := ParseLoadSpec(tt.spec)
			assert.Equal(t, tt.table, table)
			assert.Equal(t, tt.path, path)
		})
	}
}
