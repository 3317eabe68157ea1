// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/sqlsandbox/internal/cli/output"
)

// ShopFixture is a two-table fixture set written by SetupTestProject.
const ShopFixture = `name: shop
description: Customers and their orders
tables:
  - name: customers
    columns:
      - {name: id, type: INTEGER, primary_key: true}
      - {name: name, type: TEXT, nullable: false}
    rows:
      - {id: 1, name: Ada}
      - {id: 2, name: Grace}
  - name: orders
    columns:
      - {name: id, type: INTEGER, primary_key: true}
      - {name: customer_id, type: INTEGER}
      - {name: total, type: DOUBLE}
    rows:
      - {id: 10, customer_id: 1, total: 19.5}
      - {id: 11, customer_id: 2, total: 5}
`

// SalesCSV is a small dataset written to data/sales.csv.
const SalesCSV = `region,amount
north,10
south,32
`

// SetupTestProject creates a temporary project pinned to the SQLite
// bundle, with one fixture set under fixtures/ and one CSV under data/.
// It returns the project directory and the config file path.
func SetupTestProject(t *testing.T) (dir, configPath string) {
	t.Helper()

	dir = t.TempDir()
	WriteFile(t, dir, "fixtures/shop.yaml", ShopFixture)
	WriteFile(t, dir, "data/sales.csv", SalesCSV)
	configPath = WriteFile(t, dir, "sqlsandbox.yaml", `engine:
  bundle: sqlite
fixtures:
  - fixtures/*.yaml
log:
  level: warn
  no_color: true
`)
	return dir, configPath
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer in the given mode writing to buffers.
// Buffers are never terminals, so auto mode resolves to markdown.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
