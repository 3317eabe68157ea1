package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	"gopkg.in/yaml.v3"
)

// Set is a named practice exercise: the tables seeded before a learner
// starts querying.
type Set struct {
	Name        string              `yaml:"name" json:"name" validate:"required"`
	Description string              `yaml:"description" json:"description,omitempty"`
	Tables      []core.TableFixture `yaml:"tables" json:"tables" validate:"required,min=1,dive"`

	// Source is the file the set was loaded from.
	Source string `yaml:"-" json:"source,omitempty"`
}

// SQL renders the seed script of the set.
func (s Set) SQL() (string, error) {
	return Generate(s.Tables)
}

// TableNames returns the names of the set's tables in declaration order.
func (s Set) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

var validate = validator.New()

// LoadFile reads a fixture set from a YAML file. A set without a name is
// named after its file.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return Set{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if set.Name == "" {
		set.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	set.Source = path

	if err := Validate(set); err != nil {
		return Set{}, fmt.Errorf("invalid fixture %s: %w", path, err)
	}
	return set, nil
}

// LoadGlob loads every file matching patterns ("**" is supported), in path
// order. Set names must be unique across files.
func LoadGlob(patterns ...string) ([]Set, error) {
	paths, err := Expand(patterns...)
	if err != nil {
		return nil, err
	}

	sets := make([]Set, 0, len(paths))
	seen := make(map[string]string, len(paths))
	var errs []error
	for _, p := range paths {
		set, err := LoadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[set.Name]; dup {
			errs = append(errs, fmt.Errorf("fixture set %q defined in both %s and %s", set.Name, prev, p))
			continue
		}
		seen[set.Name] = p
		sets = append(sets, set)
	}
	return sets, errors.Join(errs...)
}

// Expand resolves patterns to a sorted, de-duplicated list of files.
func Expand(patterns ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid fixture pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Validate checks a set for structural errors the generator would not
// catch: missing fields, duplicate names, indexes and rows referring to
// undeclared columns.
func Validate(set Set) error {
	if err := validate.Struct(set); err != nil {
		return err
	}

	var errs []error
	tables := make(map[string]struct{}, len(set.Tables))
	for _, t := range set.Tables {
		if _, dup := tables[t.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate table %q", t.Name))
		}
		tables[t.Name] = struct{}{}
		errs = append(errs, validateTable(t)...)
	}
	return errors.Join(errs...)
}

func validateTable(t core.TableFixture) []error {
	var errs []error

	columns := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := columns[c.Name]; dup {
			errs = append(errs, fmt.Errorf("table %q: duplicate column %q", t.Name, c.Name))
		}
		columns[c.Name] = struct{}{}
		if !c.Type.Valid() {
			errs = append(errs, fmt.Errorf("table %q column %q: invalid type %q", t.Name, c.Name, c.Type))
		}
		if c.Default != nil {
			if _, err := Literal(c.Default); err != nil {
				errs = append(errs, fmt.Errorf("table %q column %q default: %w", t.Name, c.Name, err))
			}
		}
	}

	indexes := make(map[string]struct{}, len(t.Indexes))
	for _, idx := range t.Indexes {
		if _, dup := indexes[idx.Name]; dup {
			errs = append(errs, fmt.Errorf("table %q: duplicate index %q", t.Name, idx.Name))
		}
		indexes[idx.Name] = struct{}{}
		for _, c := range idx.Columns {
			if _, ok := columns[c]; !ok {
				errs = append(errs, fmt.Errorf("table %q index %q: unknown column %q", t.Name, idx.Name, c))
			}
		}
	}

	for i, row := range t.Rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := columns[k]; !ok {
				errs = append(errs, fmt.Errorf("table %q row %d: unknown column %q", t.Name, i, k))
			}
		}
	}

	if len(t.Rows) > 0 {
		if _, err := GenerateTable(t); err != nil && errors.Is(err, ErrRowShape) {
			errs = append(errs, err)
		}
	}
	return errs
}
