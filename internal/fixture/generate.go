// Package fixture turns declarative table fixtures into SQL scripts and
// manages the catalog of practice exercises built from them.
//
// Generation is pure: it never touches an engine and never checks the
// script against a live schema. Output is deterministic for a given input.
package fixture

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrRowShape is returned when a sample row has a key the first row lacks.
var ErrRowShape = errors.New("sample row has a key not present in the first row")

// ErrColumnType is returned for a column type that is not a plain keyword.
var ErrColumnType = errors.New("invalid column type")

// Generate renders the script for tables in order, separated by blank lines.
func Generate(tables []core.TableFixture) (string, error) {
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		sql, err := GenerateTable(t)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, "\n"), nil
}

// GenerateTable renders one table: comment header, CREATE TABLE, indexes
// and one INSERT per sample row.
func GenerateTable(t core.TableFixture) (string, error) {
	var b strings.Builder
	table := core.QuoteIdent(t.Name)

	writeComment(&b, DisplayName(t))
	if desc := strings.TrimSpace(t.Description); desc != "" {
		writeComment(&b, desc)
	}

	b.WriteString("CREATE TABLE " + table + " (\n")
	for i, col := range t.Columns {
		clause, err := columnClause(col)
		if err != nil {
			return "", fmt.Errorf("table %q: %w", t.Name, err)
		}
		b.WriteString("  " + clause)
		if i < len(t.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");\n")

	for _, idx := range t.Indexes {
		kind := "INDEX"
		if idx.Unique {
			kind = "UNIQUE INDEX"
		}
		fmt.Fprintf(&b, "CREATE %s %s ON %s (%s);\n",
			kind, core.QuoteIdent(idx.Name), table, core.QuoteIdents(idx.Columns))
	}

	if len(t.Rows) == 0 {
		return b.String(), nil
	}

	columns := insertColumns(t)
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES (", table, core.QuoteIdents(columns))

	for i, row := range t.Rows {
		for k := range row {
			if _, ok := known[k]; !ok {
				return "", fmt.Errorf("table %q row %d: %w: %q", t.Name, i, ErrRowShape, k)
			}
		}
		values := make([]string, len(columns))
		for j, c := range columns {
			lit, err := Literal(row[c])
			if err != nil {
				return "", fmt.Errorf("table %q row %d column %q: %w", t.Name, i, c, err)
			}
			values[j] = lit
		}
		b.WriteString(prefix + strings.Join(values, ", ") + ");\n")
	}

	return b.String(), nil
}

// writeComment writes text as "-- " lines, one per line of text.
func writeComment(b *strings.Builder, text string) {
	for _, line := range strings.FieldsFunc(text, isLineBreak) {
		b.WriteString("-- " + strings.TrimSpace(line) + "\n")
	}
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

func columnClause(col core.ColumnDef) (string, error) {
	if !col.Type.Valid() {
		return "", fmt.Errorf("column %q: %w %q", col.Name, ErrColumnType, col.Type)
	}
	parts := []string{core.QuoteIdent(col.Name), col.Type.Keyword()}
	if col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	} else if !col.IsNullable() {
		parts = append(parts, "NOT NULL")
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	if col.Default != nil {
		lit, err := Literal(col.Default)
		if err != nil {
			return "", fmt.Errorf("column %q default: %w", col.Name, err)
		}
		parts = append(parts, "DEFAULT "+lit)
	}
	return strings.Join(parts, " "), nil
}

// insertColumns returns the first row's keys: declared columns first in
// declaration order, then undeclared keys by name.
func insertColumns(t core.TableFixture) []string {
	first := t.Rows[0]
	columns := make([]string, 0, len(first))
	declared := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		declared[c.Name] = struct{}{}
		if _, ok := first[c.Name]; ok {
			columns = append(columns, c.Name)
		}
	}

	var extra []string
	for k := range first {
		if _, ok := declared[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(columns, extra...)
}

// Literal renders v as a SQL literal: strings single-quoted, NULL for nil,
// TRUE/FALSE for booleans and numbers as written.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return core.QuoteString(x), nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(x), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x), nil
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case time.Time:
		if x.Equal(x.Truncate(24*time.Hour)) && x.Location() == time.UTC {
			return core.QuoteString(x.Format(time.DateOnly)), nil
		}
		return core.QuoteString(x.Format("2006-01-02 15:04:05.999999999")), nil
	default:
		return "", fmt.Errorf("unsupported literal of type %T", v)
	}
}

func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	return strconv.FormatFloat(f, 'f', -1, bits), nil
}

// DisplayName returns the fixture's display name, or one derived from its
// table name ("order_items" becomes "Order Items").
func DisplayName(t core.TableFixture) string {
	if name := strings.TrimSpace(t.DisplayName); name != "" {
		return name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(t.Name, "_", " "))
}
