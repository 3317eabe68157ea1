// Package output renders command results for terminals, scripts and agents.
package output

import "fmt"

// Mode selects how results are written.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto" // table on a terminal, markdown otherwise
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
)

// ParseMode maps a --format/--output value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "table", "text":
		return ModeText, nil
	case "md", "markdown":
		return ModeMarkdown, nil
	case "json":
		return ModeJSON, nil
	case "csv":
		return ModeCSV, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json, csv or md)", s)
	}
}

// Formats lists the accepted format names, for flag completion.
func Formats() []string {
	return []string{"auto", "table", "json", "csv", "md"}
}
