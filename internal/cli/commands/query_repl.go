package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlsandbox/internal/sandbox"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "sandbox> "
	replContPrompt = "    ...> "
)

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, s *sandbox.Session) error {
	ctx := cmd.Context()
	styles := cc.Renderer.Styles()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          styles.Prompt.Render(replPrompt),
		HistoryFile:     historyFile(),
		AutoComplete:    newTableCompleter(ctx, s),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%s (engine: %s)\n", styles.Bold.Render("sqlsandbox REPL"), s.Bundle())
	_, _ = fmt.Fprintln(out, styles.Muted.Render("Type .help for commands, .quit to exit"))
	_, _ = fmt.Fprintln(out)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(styles.Prompt.Render(replPrompt))
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, cmd, cc, s, line); quit {
				break
			}
			// table names may have changed
			rl.Config.AutoComplete = newTableCompleter(ctx, s)
			continue
		}

		// Accumulate multi-line SQL until semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString("\n")
			rl.SetPrompt(styles.Prompt.Render(replContPrompt))
			continue
		}
		rl.SetPrompt(styles.Prompt.Render(replPrompt))

		query := buf.String()
		buf.Reset()

		if err := executeAndRender(ctx, cc, s, query); err != nil {
			cc.Renderer.Error(err.Error())
		}
		rl.Config.AutoComplete = newTableCompleter(ctx, s)
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

// historyFile returns the REPL history path, or "" to disable history.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "sqlsandbox")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "query_history")
}

// handleDotCommand runs a REPL meta command and reports whether the REPL
// should exit.
func handleDotCommand(ctx context.Context, cmd *cobra.Command, cc *CommandContext, s *sandbox.Session, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	errOut := cmd.ErrOrStderr()
	r := cc.Renderer

	report := func(err error) {
		if err != nil {
			r.Error(err.Error())
		}
	}

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(cmd.OutOrStdout())

	case ".tables":
		tables, err := s.Tables(ctx)
		if err != nil {
			report(err)
			break
		}
		rows := make([][]any, len(tables))
		for i, t := range tables {
			rows[i] = []any{t}
		}
		r.Table([]string{"table"}, rows)

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .schema <table>")
			break
		}
		report(describeTable(ctx, r, s, parts[1]))

	case ".load":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .load [table=]<file.csv|file.json>")
			break
		}
		report(cc.Load(ctx, s, parts[1]))

	case ".fixture":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .fixture <name>")
			break
		}
		report(cc.Seed(ctx, s, parts[1:]...))

	case ".reset":
		if err := s.Reset(ctx); err != nil {
			report(err)
			break
		}
		r.Success("all tables dropped")

	case ".clear":
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                  Show this help message
  .tables                List all tables
  .schema <table>        Show the columns of a table
  .load [table=]<file>   Load a CSV or JSON dataset file
  .fixture <name>        Seed a fixture set
  .reset                 Drop every table
  .clear                 Clear the screen
  .quit / .exit          Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// newTableCompleter creates a readline completer for table names and
// dot-commands.
func newTableCompleter(ctx context.Context, s *sandbox.Session) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	// completion is best effort
	tables, _ := s.Tables(ctx)
	tableItems := make([]readline.PrefixCompleterInterface, 0, len(tables))
	for _, t := range tables {
		items = append(items, readline.PcItem(t))
		tableItems = append(tableItems, readline.PcItem(t))
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema", tableItems...),
		readline.PcItem(".load"),
		readline.PcItem(".fixture"),
		readline.PcItem(".reset"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
