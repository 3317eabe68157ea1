package sqlite

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds SQLite-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// ForeignKeys enforces REFERENCES constraints (default true).
	ForeignKeys *bool `mapstructure:"foreign_keys"`

	// BusyTimeout in milliseconds for file-backed databases.
	BusyTimeout int `mapstructure:"busy_timeout"`

	// Pragmas are applied verbatim as PRAGMA name = value, in name order.
	Pragmas map[string]string `mapstructure:"pragmas"`
}

var pragmaName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
var pragmaValue = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseParams decodes raw bundle params into Params.
func ParseParams(raw map[string]any) (*Params, error) {
	params := &Params{}
	if len(raw) == 0 {
		return params, nil
	}
	if err := mapstructure.WeakDecode(raw, params); err != nil {
		return nil, fmt.Errorf("invalid sqlite params: %w", err)
	}
	return params, nil
}

// Statements returns the PRAGMA statements run on the sandbox connection.
func (p *Params) Statements() ([]string, error) {
	fk := p.ForeignKeys == nil || *p.ForeignKeys
	stmts := []string{fmt.Sprintf("PRAGMA foreign_keys = %s", onOff(fk))}

	if p.BusyTimeout > 0 {
		stmts = append(stmts, fmt.Sprintf("PRAGMA busy_timeout = %d", p.BusyTimeout))
	}

	names := make([]string, 0, len(p.Pragmas))
	for name := range p.Pragmas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := p.Pragmas[name]
		if !pragmaName.MatchString(name) {
			return nil, fmt.Errorf("invalid pragma name %q", name)
		}
		if !pragmaValue.MatchString(value) {
			return nil, fmt.Errorf("invalid value %q for pragma %s", value, name)
		}
		stmts = append(stmts, fmt.Sprintf("PRAGMA %s = %s", name, value))
	}
	return stmts, nil
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
