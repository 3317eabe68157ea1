// Package engine owns the lifecycle of the embedded SQL engine behind a
// sandbox session: one engine, one connection, created at most once per
// initialization epoch and torn down explicitly.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/leapstack-labs/sqlsandbox/pkg/adapter"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	"golang.org/x/sync/singleflight"
)

// DefaultInitTimeout bounds one instantiation sequence.
const DefaultInitTimeout = 30 * time.Second

// errTerminated is reported by an initialization that lost a race with Terminate.
var errTerminated = errors.New("engine terminated during initialization")

// Opener opens the engine database for a resolved bundle.
type Opener func(ctx context.Context, b adapter.Bundle) (*sql.DB, error)

// Engine is an opened engine instance.
type Engine struct {
	ID        string
	Bundle    adapter.Bundle
	DB        *sqlx.DB
	CreatedAt time.Time
}

// Handles is the engine together with its single connection.
type Handles struct {
	Engine *Engine
	Conn   *Conn
}

// Options configures a Manager.
type Options struct {
	// Bundle selects and parameterizes the execution bundle.
	Bundle adapter.Config

	// Opener opens the engine (default: OpenDB).
	Opener Opener

	// InitTimeout bounds one instantiation (default: DefaultInitTimeout).
	InitTimeout time.Duration

	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Manager owns at most one engine and connection.
type Manager struct {
	opts   Options
	logger *slog.Logger
	group  singleflight.Group

	mu     sync.Mutex
	cached *Handles
	epoch  uint64
	inits  int
}

// NewManager creates a manager. No engine is opened until Initialize.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Opener == nil {
		opts.Opener = OpenDB
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultInitTimeout
	}
	return &Manager{opts: opts, logger: opts.Logger}
}

// OpenDB opens and pings the bundle's database.
func OpenDB(ctx context.Context, b adapter.Bundle) (*sql.DB, error) {
	db, err := sql.Open(b.Driver, b.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", b.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", b.Name, err)
	}
	return db, nil
}

// Cached returns the current handles, or nil when not initialized.
func (m *Manager) Cached() *Handles {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached
}

// Initializations returns how many instantiation sequences completed.
func (m *Manager) Initializations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inits
}

// Initialize returns the cached handles, or instantiates the engine.
// Concurrent callers share one instantiation and receive the same handles
// or the same error. A caller whose ctx ends stops waiting; the
// instantiation itself continues and is cached for the next call.
//
// At most one instantiation runs at a time. A caller arriving after a
// Terminate waits for the instantiation that Terminate invalidated to
// discard its handles, then starts a fresh one.
func (m *Manager) Initialize(ctx context.Context) (*Handles, error) {
	for {
		m.mu.Lock()
		if m.cached != nil {
			h := m.cached
			m.mu.Unlock()
			return h, nil
		}
		epoch := m.epoch
		m.mu.Unlock()

		flightCtx := context.WithoutCancel(ctx)
		ch := m.group.DoChan(flightKey, func() (any, error) {
			return m.instantiate(flightCtx)
		})

		select {
		case res := <-ch:
			f := res.Val.(*flight)
			if res.Err == nil {
				return f.handles, nil
			}
			if f.epoch < epoch {
				continue
			}
			return nil, res.Err
		case <-ctx.Done():
			return nil, core.Fail("initialize", core.ReasonOf(ctx.Err()), ctx.Err())
		}
	}
}

// flightKey names the one instantiation the singleflight group may run.
const flightKey = "engine"

// flight is the outcome of one instantiation and the epoch it started in.
type flight struct {
	handles *Handles
	epoch   uint64
}

func (m *Manager) instantiate(ctx context.Context) (*flight, error) {
	m.mu.Lock()
	f := &flight{handles: m.cached, epoch: m.epoch}
	m.mu.Unlock()
	if f.handles != nil {
		return f, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.InitTimeout)
	defer cancel()

	start := time.Now()
	h, err := m.open(ctx)
	if err != nil {
		reason := core.ReasonEngineFailure
		if errors.Is(err, context.DeadlineExceeded) {
			reason = core.ReasonTimeout
		}
		m.logger.Error("engine initialization failed", "error", err)
		return f, core.Fail("initialize", reason, err)
	}

	m.mu.Lock()
	if m.epoch != f.epoch {
		m.mu.Unlock()
		m.logger.Warn("discarding engine opened after terminate", "engine_id", h.Engine.ID)
		m.closeHandles(ctx, h)
		return f, core.Fail("initialize", core.ReasonTerminated, errTerminated)
	}
	m.cached = h
	m.inits++
	m.mu.Unlock()
	f.handles = h

	m.logger.Info("engine ready",
		slog.String("engine_id", h.Engine.ID),
		slog.String("bundle", h.Engine.Bundle.Name),
		slog.Duration("elapsed", time.Since(start)))
	return f, nil
}

// open runs the instantiation sequence. Anything opened is closed again
// when a later step fails.
func (m *Manager) open(ctx context.Context) (*Handles, error) {
	bundle, err := adapter.Resolve(m.opts.Bundle)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("opening engine", "bundle", bundle.Name, "dsn", bundle.DSN)

	db, err := m.opts.Opener(ctx, bundle)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	xdb := sqlx.NewDb(db, bundle.Driver)

	xconn, err := xdb.Connx(ctx)
	if err != nil {
		_ = xdb.Close()
		return nil, fmt.Errorf("failed to open engine connection: %w", err)
	}

	for _, stmt := range bundle.Setup {
		if _, err := xconn.ExecContext(ctx, stmt); err != nil {
			_ = xconn.Close()
			_ = xdb.Close()
			return nil, fmt.Errorf("failed to run setup statement %q: %w", stmt, err)
		}
	}

	return &Handles{
		Engine: &Engine{
			ID:        uuid.NewString(),
			Bundle:    bundle,
			DB:        xdb,
			CreatedAt: time.Now(),
		},
		Conn: newConn(xconn, m.logger),
	}, nil
}

// Terminate closes the connection, then the engine, and clears the cache.
// Close failures are logged, not returned. An initialization still in
// flight discards its handles instead of caching them.
func (m *Manager) Terminate(ctx context.Context) {
	m.mu.Lock()
	h := m.cached
	m.cached = nil
	m.epoch++
	m.mu.Unlock()

	if h == nil {
		return
	}
	m.closeHandles(ctx, h)
	m.logger.Info("engine terminated", "engine_id", h.Engine.ID)
}

func (m *Manager) closeHandles(ctx context.Context, h *Handles) {
	if err := h.Conn.Close(); err != nil {
		m.logger.WarnContext(ctx, "failed to close engine connection", "engine_id", h.Engine.ID, "error", err)
	}
	if err := h.Engine.DB.Close(); err != nil {
		m.logger.WarnContext(ctx, "failed to close engine", "engine_id", h.Engine.ID, "error", err)
	}
}
