package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leapstack-labs/sqlsandbox/internal/config"
	"github.com/leapstack-labs/sqlsandbox/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sandboxes over HTTP",
		Long: `Start the HTTP host. Every browser session gets its own sandbox, created
with POST /api/session and closed after the idle timeout.

When a JWT secret is configured, /api requires an HS256 bearer token.`,
		Example: `  sqlsandbox serve --addr :8790 --watch
  SQLSANDBOX_SERVER__JWT_SECRET=... sqlsandbox serve`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", config.DefaultAddr, "Listen address")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens (empty disables auth)")
	cmd.Flags().Duration("idle-timeout", config.DefaultIdleTimeout, "Close sessions idle for this long")
	cmd.Flags().Int("max-sessions", 0, "Maximum open sessions (0 = unlimited)")
	cmd.Flags().Bool("watch", false, "Reload fixture files when they change")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cc, err := NewCommandContext(cmd, "")
	if err != nil {
		return err
	}
	cfg := cc.Cfg

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(server.Config{
		Addr:            cfg.Server.Addr,
		Engine:          cfg.Engine.AdapterConfig(),
		InitTimeout:     cfg.Engine.InitTimeout,
		QueryTimeout:    cfg.Engine.QueryTimeout,
		SessionSecret:   cfg.Server.SessionSecret,
		SecureCookies:   cfg.Server.SecureCookies,
		JWTSecret:       cfg.Server.JWTSecret,
		JWTIssuer:       cfg.Server.JWTIssuer,
		IdleTimeout:     cfg.Server.IdleTimeout,
		SweepSchedule:   cfg.Server.SweepSchedule,
		MaxSessions:     cfg.Server.MaxSessions,
		Watch:           cfg.Server.WatchFixtures,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Catalog:         cc.Catalog(),
		Logger:          cc.Logger,
	})
	if err != nil {
		return err
	}

	if cfg.Server.JWTSecret == "" {
		cc.Logger.Warn("bearer authentication disabled, set server.jwt_secret to enable it")
	}
	cc.Logger.Info("sandbox host configured",
		"bundle", cfg.Engine.Bundle,
		"idle_timeout", cfg.Server.IdleTimeout.Round(time.Second),
		"watch", cfg.Server.WatchFixtures)

	return srv.Serve(ctx)
}
