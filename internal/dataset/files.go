package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlsandbox/pkg/core"
)

// ParseCSV reads a CSV file with a header row. Empty cells become NULL;
// other cells are read as integers, floats or booleans when they parse as
// one, and as text otherwise. The header order is returned as columns.
func ParseCSV(r io.Reader) (records []core.Record, columns []string, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("csv has no header row")
		}
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	columns = make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rec := make(core.Record, len(columns))
		for i, cell := range row {
			rec[columns[i]] = parseCell(cell)
		}
		records = append(records, rec)
	}
	return records, columns, nil
}

func parseCell(cell string) any {
	if cell == "" {
		return nil
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	switch strings.ToLower(cell) {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}

// ParseJSON reads a JSON array of objects. Numbers keep their integer or
// floating-point form.
func ParseJSON(r io.Reader) ([]core.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode json records: %w", err)
	}

	records := make([]core.Record, len(raw))
	for i, obj := range raw {
		rec := make(core.Record, len(obj))
		for k, v := range obj {
			if n, ok := v.(json.Number); ok {
				if n64, err := n.Int64(); err == nil {
					v = n64
				} else if f, err := n.Float64(); err == nil {
					v = f
				}
			}
			rec[k] = v
		}
		records[i] = rec
	}
	return records, nil
}

// ReadFile loads records from a .csv or .json file. columns is nil for
// JSON input.
func ReadFile(path string) (records []core.Record, columns []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(f)
	case ".json":
		records, err := ParseJSON(f)
		return records, nil, err
	default:
		return nil, nil, fmt.Errorf("unsupported dataset file %q (want .csv or .json)", filepath.Base(path))
	}
}

// TableName derives a table name from a dataset file path.
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
