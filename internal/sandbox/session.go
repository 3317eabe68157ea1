// Package sandbox is the operation surface of a query sandbox session:
// run a query and get a typed outcome, bulk-load a dataset, run raw DDL,
// and reset the database.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/leapstack-labs/sqlsandbox/internal/dataset"
	"github.com/leapstack-labs/sqlsandbox/internal/engine"
	"github.com/leapstack-labs/sqlsandbox/internal/fixture"
	"github.com/leapstack-labs/sqlsandbox/pkg/adapter"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
)

// Options configures a Session.
type Options struct {
	// QueryTimeout bounds each engine operation. Zero means no limit.
	QueryTimeout time.Duration

	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger

	// Metrics receives query and load counters (optional).
	Metrics *Metrics
}

// Session is one sandbox: a lifecycle manager plus the operations on top of
// its connection. Methods are safe for concurrent use; engine work is
// serialized on the connection.
type Session struct {
	id      string
	mgr     *engine.Manager
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// New creates a session over mgr. No engine is started until Open.
func New(mgr *engine.Manager, opts Options) *Session {
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		id:      id,
		mgr:     mgr,
		timeout: opts.QueryTimeout,
		logger:  logger.With("session", id),
		metrics: opts.Metrics,
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Open initializes the engine, or returns at once when it is already up.
func (s *Session) Open(ctx context.Context) error {
	_, err := s.mgr.Initialize(ctx)
	return err
}

// Close tears the engine down. The session can be opened again.
func (s *Session) Close(ctx context.Context) {
	s.mgr.Terminate(ctx)
}

// Ready reports whether the engine is initialized.
func (s *Session) Ready() bool {
	return s.mgr.Cached() != nil
}

// Bundle returns the name of the running engine bundle, or "" when the
// session is not ready.
func (s *Session) Bundle() string {
	if h := s.mgr.Cached(); h != nil {
		return h.Engine.Bundle.Name
	}
	return ""
}

func (s *Session) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// classify wraps an engine error with the reason it failed for.
func classify(ctx context.Context, op, table string, err error) error {
	reason := core.ReasonQueryFailed
	switch {
	case ctx.Err() != nil:
		reason = core.ReasonOf(ctx.Err())
	case errors.Is(err, engine.ErrClosed):
		reason = core.ReasonTerminated
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		reason = core.ReasonOf(err)
	}
	return &core.Failure{Op: op, Reason: reason, Table: table, Err: err}
}

// Execute runs sql and returns its outcome. A session that is not ready
// fails with "Database not ready" without touching the engine.
func (s *Session) Execute(ctx context.Context, sql string) core.Outcome {
	h := s.mgr.Cached()
	if h == nil {
		out := core.Failed(core.NotReady("execute"), 0)
		s.metrics.query(out)
		return out
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := h.Conn.Query(ctx, sql)
	elapsed := time.Since(start)

	var out core.Outcome
	if err != nil {
		err = classify(ctx, "execute", "", err)
		s.logger.Debug("query failed", "error", err, "reason", core.ReasonOf(err))
		out = core.Failed(err, elapsed)
	} else {
		out = core.Succeeded(toResult(res), res.Fields, elapsed)
		s.logger.Debug("query executed", "rows", res.Len, "elapsed", elapsed)
	}
	s.metrics.query(out)
	return out
}

// toResult walks the columnar buffer field by field, then row by row.
func toResult(c *engine.Columnar) *core.QueryResult {
	columns := make([]string, len(c.Fields))
	rows := make([][]any, c.Len)
	for r := range rows {
		rows[r] = make([]any, len(c.Fields))
	}
	for f, field := range c.Fields {
		columns[f] = field.Name
		for r := 0; r < c.Len; r++ {
			rows[r][f] = c.Value(f, r)
		}
	}
	return &core.QueryResult{Columns: columns, Rows: rows, RowCount: c.Len}
}

// LoadDataset replaces table with records. The column types are decided
// from the record values (see dataset.Build); columns, when given, fixes
// the column list and order. An empty record list is rejected with
// core.ReasonEmptyDataset and leaves the database untouched.
func (s *Session) LoadDataset(ctx context.Context, table string, records []core.Record, columns ...string) error {
	const op = "load dataset"
	if strings.TrimSpace(table) == "" {
		return &core.Failure{Op: op, Reason: core.ReasonInvalidInput, Err: errors.New("table name must not be empty")}
	}
	if len(records) == 0 {
		s.logger.Warn("no rows to load", "table", table)
		err := &core.Failure{Op: op, Reason: core.ReasonEmptyDataset, Table: table, Err: core.ErrEmptyDataset}
		s.metrics.load(err)
		return err
	}
	if !s.Ready() {
		return core.NotReady(op)
	}

	ds, err := dataset.Build(table, records, columns...)
	if err != nil {
		return &core.Failure{Op: op, Reason: core.ReasonInvalidInput, Table: table, Err: err}
	}
	return s.LoadTable(ctx, ds)
}

// LoadTable replaces ds.Name with the typed rows of ds in one engine job:
// drop, create, then bulk insert.
func (s *Session) LoadTable(ctx context.Context, ds core.Dataset) error {
	const op = "load dataset"
	h := s.mgr.Cached()
	if h == nil {
		return core.NotReady(op)
	}
	if err := checkDataset(ds); err != nil {
		return &core.Failure{Op: op, Reason: core.ReasonInvalidInput, Table: ds.Name, Err: err}
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	bundle := h.Engine.Bundle
	err := h.Conn.Do(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		if _, err := conn.ExecContext(ctx, adapter.DropTableSQL(ds.Name)); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
		if _, err := conn.ExecContext(ctx, adapter.CreateTableSQL(ds)); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
		if len(ds.Rows) == 0 {
			return nil
		}
		if bundle.Append != nil {
			return bundle.Append(ctx, conn.Conn, ds)
		}
		return adapter.InsertRows(ctx, conn.Conn, ds)
	})
	if err != nil {
		err = classify(ctx, op, ds.Name, err)
		s.logger.Error("failed to load dataset", "table", ds.Name, "error", err)
		s.metrics.load(err)
		return err
	}

	s.logger.Info("dataset loaded", "table", ds.Name, "rows", len(ds.Rows), "columns", len(ds.Columns))
	s.metrics.load(nil)
	return nil
}

func checkDataset(ds core.Dataset) error {
	if strings.TrimSpace(ds.Name) == "" {
		return errors.New("table name must not be empty")
	}
	if len(ds.Columns) == 0 {
		return dataset.ErrNoColumns
	}
	for _, c := range ds.Columns {
		if !c.Type.Valid() {
			return fmt.Errorf("column %q: invalid type %q", c.Name, c.Type)
		}
	}
	for i, row := range ds.Rows {
		if len(row) != len(ds.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(ds.Columns))
		}
	}
	return nil
}

// LoadDatasetFromSQL runs a DDL/DML script verbatim.
func (s *Session) LoadDatasetFromSQL(ctx context.Context, script string) error {
	const op = "load sql"
	h := s.mgr.Cached()
	if h == nil {
		return core.NotReady(op)
	}
	if strings.TrimSpace(script) == "" {
		return &core.Failure{Op: op, Reason: core.ReasonInvalidInput, Err: errors.New("script is empty")}
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := h.Conn.Exec(ctx, script); err != nil {
		err = classify(ctx, op, "", err)
		s.logger.Error("failed to load dataset from sql", "error", err)
		s.metrics.load(err)
		return err
	}
	s.metrics.load(nil)
	return nil
}

// Seed runs the generated script of a fixture set.
func (s *Session) Seed(ctx context.Context, set fixture.Set) error {
	script, err := set.SQL()
	if err != nil {
		return &core.Failure{Op: "seed", Reason: core.ReasonInvalidInput, Err: err}
	}
	if err := s.LoadDatasetFromSQL(ctx, script); err != nil {
		return err
	}
	s.logger.Info("fixture seeded", "set", set.Name, "tables", len(set.Tables))
	return nil
}

// Tables lists the base tables of the session database in name order.
func (s *Session) Tables(ctx context.Context) ([]string, error) {
	const op = "list tables"
	h := s.mgr.Cached()
	if h == nil {
		return nil, core.NotReady(op)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tables := []string{}
	if err := h.Conn.Select(ctx, &tables, h.Engine.Bundle.Dialect.ListTables); err != nil {
		return nil, classify(ctx, op, "", err)
	}
	return tables, nil
}

type columnRow struct {
	Name     string `db:"column_name"`
	Type     string `db:"data_type"`
	Nullable string `db:"is_nullable"`
	Position int    `db:"ordinal_position"`
}

// Describe returns the columns of table.
func (s *Session) Describe(ctx context.Context, table string) ([]core.Column, error) {
	const op = "describe"
	h := s.mgr.Cached()
	if h == nil {
		return nil, core.NotReady(op)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var rows []columnRow
	if err := h.Conn.Select(ctx, &rows, h.Engine.Bundle.Dialect.DescribeTable, table); err != nil {
		return nil, classify(ctx, op, table, err)
	}
	if len(rows) == 0 {
		return nil, &core.Failure{Op: op, Reason: core.ReasonInvalidInput, Table: table, Err: errors.New("table does not exist")}
	}

	columns := make([]core.Column, len(rows))
	for i, r := range rows {
		columns[i] = core.Column{
			Name:     r.Name,
			Type:     r.Type,
			Nullable: strings.EqualFold(r.Nullable, "YES"),
			Position: r.Position,
		}
	}
	return columns, nil
}

// Reset drops every base table, one statement per table. Tables that
// reference others through a foreign key go before the tables they
// reference; otherwise the order is by name. It stops at the first
// failure; tables dropped before it stay dropped.
func (s *Session) Reset(ctx context.Context) (err error) {
	defer func() { s.metrics.reset(err) }()

	h := s.mgr.Cached()
	if h == nil {
		return core.NotReady("reset")
	}

	tables, err := s.Tables(ctx)
	if err != nil {
		s.logger.Error("failed to list tables for reset", "error", err)
		return err
	}
	keys, err := s.foreignKeys(ctx, h)
	if err != nil {
		s.logger.Error("failed to list foreign keys for reset", "error", err)
		return err
	}
	tables = dropOrder(tables, keys)

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	for _, table := range tables {
		if err := h.Conn.Exec(ctx, adapter.DropTableSQL(table)); err != nil {
			err = classify(ctx, "reset", table, err)
			s.logger.Error("failed to drop table", "table", table, "error", err)
			return err
		}
	}
	s.logger.Info("sandbox reset", "dropped", len(tables))
	return nil
}

type foreignKey struct {
	Table      string `db:"table_name"`
	Referenced string `db:"referenced_table"`
}

func (s *Session) foreignKeys(ctx context.Context, h *engine.Handles) ([]foreignKey, error) {
	query := h.Engine.Bundle.Dialect.ForeignKeys
	if query == "" {
		return nil, nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var keys []foreignKey
	if err := h.Conn.Select(ctx, &keys, query); err != nil {
		return nil, classify(ctx, "reset", "", err)
	}
	return keys, nil
}

// dropOrder returns tables with every referencing table ahead of the
// table it references. Ties and cycles fall back to the input order.
func dropOrder(tables []string, keys []foreignKey) []string {
	referencedBy := make(map[string][]string, len(keys))
	for _, k := range keys {
		if k.Table != k.Referenced {
			referencedBy[k.Referenced] = append(referencedBy[k.Referenced], k.Table)
		}
	}
	for _, children := range referencedBy {
		sort.Strings(children)
	}

	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[t] = true
	}

	ordered := make([]string, 0, len(tables))
	seen := make(map[string]bool, len(tables))
	var visit func(string)
	visit = func(t string) {
		if seen[t] || !known[t] {
			return
		}
		seen[t] = true
		for _, child := range referencedBy[t] {
			visit(child)
		}
		ordered = append(ordered, t)
	}
	for _, t := range tables {
		visit(t)
	}
	return ordered
}
