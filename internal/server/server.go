// Package server hosts sandbox sessions over HTTP: one sandbox per browser
// session cookie, idle sessions swept on a schedule, and fixture files
// reloaded as they change.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/sqlsandbox/internal/engine"
	"github.com/leapstack-labs/sqlsandbox/internal/fixture"
	"github.com/leapstack-labs/sqlsandbox/internal/sandbox"
	"github.com/leapstack-labs/sqlsandbox/internal/server/notifier"
	"github.com/leapstack-labs/sqlsandbox/pkg/adapter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

// Defaults applied by NewServer.
const (
	DefaultIdleTimeout     = 30 * time.Minute
	DefaultSweepSchedule   = "@every 1m"
	DefaultShutdownTimeout = 5 * time.Second
)

// Config holds configuration for the HTTP host.
type Config struct {
	Addr string

	// Engine selects the bundle every session opens.
	Engine       adapter.Config
	Opener       engine.Opener
	InitTimeout  time.Duration
	QueryTimeout time.Duration

	// SessionSecret signs the session cookie; empty generates a key.
	SessionSecret string
	SecureCookies bool

	JWTSecret string
	JWTIssuer string

	IdleTimeout     time.Duration
	SweepSchedule   string
	MaxSessions     int
	Watch           bool
	ShutdownTimeout time.Duration

	Catalog *fixture.Catalog

	// Metrics is the registry behind /metrics (default: a new registry
	// with process and Go collectors).
	Metrics *prometheus.Registry

	Logger *slog.Logger
}

// Server is the sandbox HTTP host.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	registry *Registry
	catalog  *fixture.Catalog
	notifier *notifier.Notifier
	handler  http.Handler
}

// NewServer creates a server. Nothing listens until Serve.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Catalog == nil {
		cfg.Catalog = fixture.NewCatalog(nil, logger)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = prometheus.NewRegistry()
		cfg.Metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	key := []byte(cfg.SessionSecret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, errors.New("failed to generate session key")
		}
		logger.Warn("no session secret configured, cookies will not survive a restart")
	}
	cookies := sessions.NewCookieStore(key)
	cookies.MaxAge(int(cfg.IdleTimeout / time.Second))
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.Secure = cfg.SecureCookies
	cookies.Options.SameSite = http.SameSiteLaxMode

	metrics := sandbox.NewMetrics(cfg.Metrics)
	registry := NewRegistry(func() *sandbox.Session {
		mgr := engine.NewManager(engine.Options{
			Bundle:      cfg.Engine,
			Opener:      cfg.Opener,
			InitTimeout: cfg.InitTimeout,
			Logger:      logger,
		})
		return sandbox.New(mgr, sandbox.Options{
			QueryTimeout: cfg.QueryTimeout,
			Logger:       logger,
			Metrics:      metrics,
		})
	}, cfg.MaxSessions, logger)

	promauto.With(cfg.Metrics).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sqlsandbox",
		Name:      "open_sessions",
		Help:      "Sandbox sessions currently registered.",
	}, func() float64 { return float64(registry.Len()) })

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		catalog:  cfg.Catalog,
		notifier: notifier.New(),
	}

	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
			NoColor: true,
		}),
		middleware.Recoverer,
		middleware.Compress(5),
	)
	SetupRoutes(r, NewHandlers(registry, s.catalog, cookies, s.notifier, logger), RouteOptions{
		JWTSecret: cfg.JWTSecret,
		JWTIssuer: cfg.JWTIssuer,
		Gatherer:  cfg.Metrics,
	})
	s.handler = r

	return s, nil
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Registry returns the session registry.
func (s *Server) Registry() *Registry { return s.registry }

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier { return s.notifier }

// Sweep closes idle sessions and notifies event streams when any closed.
func (s *Server) Sweep(ctx context.Context) []string {
	closed := s.registry.Sweep(ctx, s.cfg.IdleTimeout)
	if len(closed) > 0 {
		s.notifier.Broadcast(notifier.SessionsSwept)
	}
	return closed
}

// Serve starts the server and blocks until ctx is cancelled. All sessions
// are closed on the way out.
func (s *Server) Serve(ctx context.Context) error {
	sweeper, err := newSweeper(ctx, s.cfg.SweepSchedule, s.Sweep, s.logger)
	if err != nil {
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch {
		eg.Go(func() error {
			return s.watchFixtures(egctx)
		})
	}

	sweeper.Start()
	s.logger.Info("starting sandbox server", "addr", fmt.Sprintf("http://%s", s.cfg.Addr))

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down sandbox server...")
		<-sweeper.Stop().Done()
		err := srv.Shutdown(shutdownCtx)
		s.registry.CloseAll(shutdownCtx)
		return err
	})

	return eg.Wait()
}
