package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/sqlsandbox/internal/cli/output"
	"github.com/leapstack-labs/sqlsandbox/internal/sandbox"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format   string
	Input    string
	Fixtures []string
	Loads    []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL in a fresh sandbox",
		Long: `Start an embedded engine, prepare it with fixtures and dataset files,
and run SQL against it.

SQL is taken from the arguments, from --input, or from piped stdin.
When invoked without any of these on a terminal, enters interactive REPL mode.
The sandbox is discarded on exit unless --database names a file.`,
		Example: `  # Execute SQL directly
  sqlsandbox query "SELECT 42 AS answer"

  # Seed a fixture set and query it
  sqlsandbox query --fixture shop "SELECT * FROM customers"

  # Load a CSV file as table "sales"
  sqlsandbox query --load sales=./data/sales.csv "SELECT SUM(amount) FROM sales"

  # Output as CSV
  sqlsandbox query "SELECT 1 AS one" --format csv

  # Interactive mode
  sqlsandbox query --fixture shop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md (default from config)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringSliceVar(&opts.Fixtures, "fixture", nil, "Fixture set to seed before querying (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.Loads, "load", "l", nil, "Dataset file to load, as table=path.csv|json (repeatable)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Formats(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc, err := NewCommandContext(cmd, opts.Format)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s, err := cc.OpenSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(context.WithoutCancel(ctx))

	if err := cc.Seed(ctx, s, opts.Fixtures...); err != nil {
		return err
	}
	for _, spec := range opts.Loads {
		if err := cc.Load(ctx, s, spec); err != nil {
			return err
		}
	}

	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !output.IsTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runQueryREPL(cmd, cc, s)
	}

	if strings.TrimSpace(sqlQuery) == "" {
		return errors.New("no SQL to run")
	}
	return executeAndRender(ctx, cc, s, sqlQuery)
}

func executeAndRender(ctx context.Context, cc *CommandContext, s *sandbox.Session, sqlQuery string) error {
	return cc.Renderer.Outcome(s.Execute(ctx, sqlQuery))
}

func describeTable(ctx context.Context, r *output.Renderer, s *sandbox.Session, table string) error {
	columns, err := s.Describe(ctx, table)
	if err != nil {
		return err
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"table": table, "columns": columns})
	}

	r.Header(2, "Table: "+table)
	rows := make([][]any, len(columns))
	for i, c := range columns {
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		rows[i] = []any{c.Position, c.Name, c.Type, nullable}
	}
	r.Table([]string{"#", "column", "type", "nullable"}, rows)
	return nil
}
