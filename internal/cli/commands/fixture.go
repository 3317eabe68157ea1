package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlsandbox/internal/cli/output"
	"github.com/leapstack-labs/sqlsandbox/internal/fixture"
	"github.com/spf13/cobra"
)

// NewFixtureCommand creates the fixture command group.
func NewFixtureCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Inspect practice fixture sets",
		Long: `Fixture sets are YAML files describing practice tables: their columns,
indexes and sample rows. They are found with the "fixtures" glob patterns
of the configuration (default: fixtures/**/*.yaml).`,
	}
	cmd.PersistentFlags().StringVarP(&format, "format", "f", "", "Output format: table, json, csv, md (default from config)")

	cmd.AddCommand(
		newFixtureListCommand(&format),
		newFixtureSQLCommand(&format),
		newFixtureCheckCommand(&format),
	)
	return cmd
}

func newFixtureListCommand(format *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fixture sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd, *format)
			if err != nil {
				return err
			}
			sets := cc.Catalog().List()

			if cc.Renderer.EffectiveMode() == output.ModeJSON {
				type item struct {
					Name        string   `json:"name"`
					Description string   `json:"description,omitempty"`
					Tables      []string `json:"tables"`
					Source      string   `json:"source"`
				}
				items := make([]item, len(sets))
				for i, s := range sets {
					items[i] = item{s.Name, s.Description, s.TableNames(), s.Source}
				}
				return cc.Renderer.JSON(items)
			}

			rows := make([][]any, len(sets))
			for i, s := range sets {
				rows[i] = []any{s.Name, strings.Join(s.TableNames(), ", "), s.Description}
			}
			cc.Renderer.Table([]string{"name", "tables", "description"}, rows)
			return nil
		},
	}
}

func newFixtureSQLCommand(format *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sql [name]",
		Short: "Print the seed script of a fixture set",
		Example: `  sqlsandbox fixture sql shop
  sqlsandbox fixture sql --file ./fixtures/shop.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd, *format)
			if err != nil {
				return err
			}

			var set fixture.Set
			switch {
			case file != "":
				if set, err = fixture.LoadFile(file); err != nil {
					return err
				}
			case len(args) == 1:
				var ok bool
				if set, ok = cc.Catalog().Get(args[0]); !ok {
					return fmt.Errorf("fixture set %q not found", args[0])
				}
			default:
				return errors.New("name a fixture set or pass --file")
			}

			script, err := set.SQL()
			if err != nil {
				return err
			}
			cc.Renderer.Printf("%s", script)
			return nil
		},
		ValidArgsFunction: completeFixtureNames,
	}
	cmd.Flags().StringVar(&file, "file", "", "Read the fixture set from this file instead of the catalog")
	return cmd
}

func newFixtureCheckCommand(format *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check [files...]",
		Short: "Validate fixture files",
		Long: `Validate fixture files: schema, column types, defaults, indexes and
sample rows. Without arguments every file matched by the configured
patterns is checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd, *format)
			if err != nil {
				return err
			}

			files := args
			if len(files) == 0 {
				if files, err = fixture.Expand(cc.Cfg.Fixtures...); err != nil {
					return err
				}
			}
			if len(files) == 0 {
				cc.Renderer.Warning("no fixture files found")
				return nil
			}

			failed := 0
			for _, f := range files {
				set, err := fixture.LoadFile(f)
				if err != nil {
					failed++
					cc.Renderer.Error(err.Error())
					continue
				}
				cc.Renderer.Success(fmt.Sprintf("%s: %s (%d tables)", f, set.Name, len(set.Tables)))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fixture files are invalid", failed, len(files))
			}
			return nil
		},
	}
}

func completeFixtureNames(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cc, err := NewCommandContext(cmd, "")
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var names []string
	for _, s := range cc.Catalog().List() {
		names = append(names, s.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
