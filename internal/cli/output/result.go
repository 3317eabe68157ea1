package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
)

// Outcome renders a query outcome. A failed outcome is returned as an
// error; in JSON mode it is also written like a successful one.
func (r *Renderer) Outcome(out core.Outcome) error {
	mode := r.EffectiveMode()
	if mode == ModeJSON {
		if err := r.JSON(out); err != nil {
			return err
		}
	}
	if !out.Success {
		return &core.Failure{Op: "query", Reason: out.Reason, Err: errors.New(out.Error)}
	}
	if mode == ModeJSON {
		return nil
	}

	r.Table(out.Result.Columns, out.Result.Rows)
	if mode == ModeText {
		r.Muted(StatusLine(out))
	}
	return nil
}

// StatusLine summarizes a successful outcome, e.g. "(3 rows in 1.25ms)".
func StatusLine(out core.Outcome) string {
	noun := "rows"
	if out.Result != nil && out.Result.RowCount == 1 {
		noun = "row"
	}
	n := 0
	if out.Result != nil {
		n = out.Result.RowCount
	}
	return fmt.Sprintf("(%d %s in %s)", n, noun, out.Elapsed.Round(10*time.Microsecond))
}

// Table writes rows under columns in the renderer's mode.
func (r *Renderer) Table(columns []string, rows [][]any) {
	mode := r.EffectiveMode()
	if mode == ModeJSON {
		records := make([]map[string]any, len(rows))
		for i, row := range rows {
			rec := make(map[string]any, len(columns))
			for j, col := range columns {
				rec[col] = row[j]
			}
			records[i] = rec
		}
		_ = r.JSON(records)
		return
	}
	if mode == ModeCSV {
		r.csv(columns, rows)
		return
	}
	if len(rows) == 0 {
		r.Println("(0 rows)")
		return
	}

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(style)

	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rows {
		cells := make(table.Row, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		t.AppendRow(cells)
	}

	if mode == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

// csv writes RFC 4180 records.
func (r *Renderer) csv(columns []string, rows [][]any) {
	w := csv.NewWriter(r.out)
	_ = w.Write(columns)
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, v := range row {
			record[i] = FormatValue(v)
		}
		_ = w.Write(record)
	}
	w.Flush()
}

// FormatValue renders one cell for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format("2006-01-02 15:04:05.999999999")
	default:
		return fmt.Sprintf("%v", v)
	}
}
