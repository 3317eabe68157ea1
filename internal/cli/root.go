// Package cli provides the command-line interface for sqlsandbox.
package cli

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/sqlsandbox/internal/cli/commands"
	"github.com/leapstack-labs/sqlsandbox/internal/cli/output"
	"github.com/leapstack-labs/sqlsandbox/internal/config"
	"github.com/leapstack-labs/sqlsandbox/internal/logger"
	"github.com/leapstack-labs/sqlsandbox/pkg/adapter"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "sqlsandbox",
		Short: "sqlsandbox - embedded SQL practice sandbox",
		Long: `sqlsandbox runs SQL against an in-process analytical engine (DuckDB, or
SQLite when built without cgo). Practice tables come from fixture files or
CSV/JSON datasets; nothing is sent to a database server.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			log := logger.New(logger.Options{
				Level:      cfg.Log.Level,
				Format:     cfg.Log.Format,
				NoColor:    cfg.Log.NoColor || !output.IsTerminal(cmd.ErrOrStderr()),
				File:       cfg.Log.File,
				FileLevel:  cfg.Log.FileLevel,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
				Writer:     cmd.ErrOrStderr(),
			})

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, log)
			cmd.SetContext(ctx)

			if cfg.File != "" {
				log.Debug("using config file", "path", cfg.File)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return logger.Close(config.GetLogger(cmd.Context()))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go, DuckDB and SQLite
`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./sqlsandbox.yaml, searched upward)")
	flags.String("bundle", "", "Engine bundle: duckdb or sqlite (default: best available)")
	flags.String("database", "", "Database file (default: in-memory)")
	flags.Duration("init-timeout", config.DefaultInitTimeout, "Engine start-up timeout")
	flags.Duration("query-timeout", 0, "Per-statement timeout (0 = none)")
	flags.StringSlice("fixture-glob", nil, "Fixture file patterns (default: fixtures/**/*.yaml)")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("output", "o", "", "Output format (auto|table|json|csv|md)")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (text|json)")
	flags.String("log-file", "", "Also write JSON logs to this rotating file")
	flags.Bool("no-color", false, "Disable colored output")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Formats(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("bundle", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return adapter.ListBundles(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewFixtureCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for sqlsandbox.

To load completions:

Bash:
  $ source <(sqlsandbox completion bash)

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ sqlsandbox completion zsh > "${fpath[1]}/_sqlsandbox"

Fish:
  $ sqlsandbox completion fish > ~/.config/fish/completions/sqlsandbox.fish

PowerShell:
  PS> sqlsandbox completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
