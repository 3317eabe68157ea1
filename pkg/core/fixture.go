package core

import (
	"regexp"
	"strings"
)

// ColumnType is the SQL type keyword of a column, e.g. INTEGER or TEXT.
type ColumnType string

// Column types understood by every bundled engine.
const (
	TypeInteger   ColumnType = "INTEGER"
	TypeBigInt    ColumnType = "BIGINT"
	TypeDouble    ColumnType = "DOUBLE"
	TypeDecimal   ColumnType = "DECIMAL"
	TypeText      ColumnType = "TEXT"
	TypeVarchar   ColumnType = "VARCHAR"
	TypeBoolean   ColumnType = "BOOLEAN"
	TypeDate      ColumnType = "DATE"
	TypeTimestamp ColumnType = "TIMESTAMP"
)

var typeKeyword = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ]*(\([0-9, ]+\))?$`)

// Keyword returns the normalized keyword used in generated DDL.
func (t ColumnType) Keyword() string {
	return strings.ToUpper(strings.TrimSpace(string(t)))
}

// Valid reports whether t is a plain type keyword, optionally with a
// numeric parameter list such as DECIMAL(10, 2).
func (t ColumnType) Valid() bool {
	return typeKeyword.MatchString(t.Keyword())
}

// TableFixture describes a practice table: its schema, indexes and sample rows.
type TableFixture struct {
	Name        string           `yaml:"name" validate:"required"`
	DisplayName string           `yaml:"display_name"`
	Description string           `yaml:"description"`
	Columns     []ColumnDef      `yaml:"columns" validate:"required,min=1,dive"`
	Rows        []map[string]any `yaml:"rows"`
	Indexes     []IndexDef       `yaml:"indexes" validate:"dive"`
}

// ColumnDef describes one column of a TableFixture.
type ColumnDef struct {
	Name       string     `yaml:"name" validate:"required"`
	Type       ColumnType `yaml:"type" validate:"required"`
	Nullable   *bool      `yaml:"nullable"`
	PrimaryKey bool       `yaml:"primary_key"`
	Unique     bool       `yaml:"unique"`
	Default    any        `yaml:"default"`
}

// IsNullable reports whether the column accepts NULL. Columns are nullable
// unless declared otherwise.
func (c ColumnDef) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

// IndexDef describes an index declared on a TableFixture.
type IndexDef struct {
	Name    string   `yaml:"name" validate:"required"`
	Columns []string `yaml:"columns" validate:"required,min=1"`
	Unique  bool     `yaml:"unique"`
}
