// Package commands implements the sqlsandbox subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlsandbox/internal/cli/output"
	"github.com/leapstack-labs/sqlsandbox/internal/config"
	"github.com/leapstack-labs/sqlsandbox/internal/dataset"
	"github.com/leapstack-labs/sqlsandbox/internal/engine"
	"github.com/leapstack-labs/sqlsandbox/internal/fixture"
	"github.com/leapstack-labs/sqlsandbox/internal/sandbox"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config and logger stored by the root
// command and builds a renderer. format overrides the configured output
// format when not empty.
func NewCommandContext(cmd *cobra.Command, format string) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		var err error
		if cfg, err = config.Load("", nil); err != nil {
			return nil, err
		}
	}
	if format == "" {
		format = cfg.Output
	}
	mode, err := output.ParseMode(format)
	if err != nil {
		return nil, err
	}

	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
	if cfg.Log.NoColor {
		r.DisableColor()
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: r,
	}, nil
}

// OpenSession starts a sandbox session on the configured bundle. Callers
// must Close it.
func (cc *CommandContext) OpenSession(ctx context.Context) (*sandbox.Session, error) {
	mgr := engine.NewManager(engine.Options{
		Bundle:      cc.Cfg.Engine.AdapterConfig(),
		InitTimeout: cc.Cfg.Engine.InitTimeout,
		Logger:      cc.Logger,
	})
	s := sandbox.New(mgr, sandbox.Options{
		QueryTimeout: cc.Cfg.Engine.QueryTimeout,
		Logger:       cc.Logger,
	})
	if err := s.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	cc.Logger.Debug("sandbox ready", "bundle", s.Bundle())
	return s, nil
}

// Catalog loads the fixture sets matched by the configured patterns.
// Files that fail to load are reported as warnings.
func (cc *CommandContext) Catalog() *fixture.Catalog {
	c := fixture.NewCatalog(cc.Cfg.Fixtures, cc.Logger)
	if err := c.Reload(); err != nil {
		cc.Renderer.Warning(err.Error())
	}
	return c
}

// Seed runs the named fixture sets in s.
func (cc *CommandContext) Seed(ctx context.Context, s *sandbox.Session, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	catalog := cc.Catalog()
	for _, name := range names {
		set, ok := catalog.Get(name)
		if !ok {
			return fmt.Errorf("fixture set %q not found", name)
		}
		if err := s.Seed(ctx, set); err != nil {
			return err
		}
		cc.Renderer.Muted(fmt.Sprintf("seeded %s (%s)", set.Name, strings.Join(set.TableNames(), ", ")))
	}
	return nil
}

// Load reads a dataset file into s. spec is "table=path" or a bare path,
// in which case the table is named after the file.
func (cc *CommandContext) Load(ctx context.Context, s *sandbox.Session, spec string) error {
	table, path := ParseLoadSpec(spec)
	records, columns, err := dataset.ReadFile(path)
	if err != nil {
		return err
	}
	if err := s.LoadDataset(ctx, table, records, columns...); err != nil {
		return err
	}
	cc.Renderer.Muted(fmt.Sprintf("loaded %s (%d rows)", table, len(records)))
	return nil
}

// ParseLoadSpec splits "table=path"; a bare path names the table after
// the file.
func ParseLoadSpec(spec string) (table, path string) {
	if t, p, ok := strings.Cut(spec, "="); ok && t != "" {
		return t, p
	}
	return dataset.TableName(spec), spec
}
