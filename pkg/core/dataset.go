package core

// Record is one row of an ad-hoc dataset keyed by column name.
type Record map[string]any

// ColumnSpec is a column of a Dataset with its mapped SQL type.
type ColumnSpec struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Dataset is the explicit, typed form of a table load. Rows are positional
// and already coerced to the Go type matching each column's type.
type Dataset struct {
	Name    string
	Columns []ColumnSpec
	Rows    [][]any
}

// ColumnNames returns the dataset's column names in order.
func (d Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}
