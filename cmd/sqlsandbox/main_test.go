package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/sqlsandbox/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlsandbox v")
	assert.Contains(t, out, "sqlite")
}

func TestHelpCommand(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"query", "fixture", "serve", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestQueryCommand_SQLiteBundle(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "sqlsandbox.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("engine:\n  bundle: sqlite\n"), 0o600))

	out, err := run(t, "--config", cfg, "query", "-f", "csv", "SELECT 41 + 1 AS answer")
	require.NoError(t, err)
	assert.Contains(t, out, "answer\n42\n")
}
