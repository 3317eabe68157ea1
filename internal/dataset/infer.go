// Package dataset maps ad-hoc records onto explicitly typed tables.
//
// Column types are decided per column from the Go values present in the
// records, then every cell is coerced to the Go type matching its column:
// int64 for BIGINT, float64 for DOUBLE, bool for BOOLEAN, time.Time for
// TIMESTAMP and string for TEXT.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/leapstack-labs/sqlsandbox/pkg/core"
)

// ErrNoColumns is returned when records carry no keys at all.
var ErrNoColumns = errors.New("dataset has no columns")

// Build maps records into a typed Dataset for table. When columns is empty
// the union of all record keys is used, in name order. Keys not listed in
// columns are ignored; listed columns a record lacks are NULL.
func Build(table string, records []core.Record, columns ...string) (core.Dataset, error) {
	if len(columns) == 0 {
		columns = Keys(records)
	} else if err := checkColumns(columns); err != nil {
		return core.Dataset{}, err
	}
	if len(columns) == 0 {
		return core.Dataset{}, ErrNoColumns
	}

	specs := InferColumns(records, columns)
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(specs))
		for j, spec := range specs {
			v, err := Coerce(rec[spec.Name], spec.Type)
			if err != nil {
				return core.Dataset{}, fmt.Errorf("row %d column %q: %w", i, spec.Name, err)
			}
			row[j] = v
		}
		rows[i] = row
	}

	return core.Dataset{Name: table, Columns: specs, Rows: rows}, nil
}

// Keys returns the sorted union of keys across records.
func Keys(records []core.Record) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkColumns(columns []string) error {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c == "" {
			return errors.New("column name must not be empty")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// InferColumns decides the type of each column from the non-nil values
// found in records. BIGINT widens to DOUBLE; any other disagreement, or a
// column with no values at all, falls back to TEXT.
func InferColumns(records []core.Record, columns []string) []core.ColumnSpec {
	specs := make([]core.ColumnSpec, len(columns))
	for i, name := range columns {
		var typ core.ColumnType
		for _, rec := range records {
			t, ok := typeOf(rec[name])
			if !ok {
				continue
			}
			typ = merge(typ, t)
			if typ == core.TypeText {
				break
			}
		}
		if typ == "" {
			typ = core.TypeText
		}
		specs[i] = core.ColumnSpec{Name: name, Type: typ}
	}
	return specs
}

func merge(have, next core.ColumnType) core.ColumnType {
	switch {
	case have == "" || have == next:
		return next
	case have == core.TypeBigInt && next == core.TypeDouble,
		have == core.TypeDouble && next == core.TypeBigInt:
		return core.TypeDouble
	default:
		return core.TypeText
	}
}

// typeOf reports the column type implied by v. ok is false for nil.
func typeOf(v any) (core.ColumnType, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return core.TypeBigInt, true
	case uint64:
		if x > math.MaxInt64 {
			return core.TypeDouble, true
		}
		return core.TypeBigInt, true
	case float32, float64:
		return core.TypeDouble, true
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return core.TypeBigInt, true
		}
		return core.TypeDouble, true
	case bool:
		return core.TypeBoolean, true
	case time.Time:
		return core.TypeTimestamp, true
	default:
		return core.TypeText, true
	}
}

// Coerce converts v to the Go type stored in a column of type t.
// nil stays nil.
func Coerce(v any, t core.ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case core.TypeBigInt, core.TypeInteger:
		return toInt64(v)
	case core.TypeDouble, core.TypeDecimal:
		return toFloat64(v)
	case core.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot use %T as BOOLEAN", v)
		}
		return b, nil
	case core.TypeTimestamp, core.TypeDate:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("cannot use %T as %s", v, t)
		}
		return ts, nil
	default:
		return toText(v)
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows BIGINT", x)
		}
		return int64(x), nil
	case json.Number:
		return x.Int64()
	default:
		return 0, fmt.Errorf("cannot use %T as BIGINT", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	case uint64:
		return float64(x), nil
	default:
		i, err := toInt64(v)
		if err != nil {
			return 0, fmt.Errorf("cannot use %T as DOUBLE", v)
		}
		return float64(i), nil
	}
}

func toText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.Number:
		return x.String(), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	if i, err := toInt64(v); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	if u, ok := v.(uint64); ok {
		return strconv.FormatUint(u, 10), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cannot use %T as TEXT: %w", v, err)
	}
	return string(b), nil
}
