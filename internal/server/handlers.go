package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/sqlsandbox/internal/dataset"
	"github.com/leapstack-labs/sqlsandbox/internal/fixture"
	"github.com/leapstack-labs/sqlsandbox/internal/sandbox"
	"github.com/leapstack-labs/sqlsandbox/internal/server/notifier"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	"github.com/starfederation/datastar-go/datastar"
)

const (
	cookieName = "sqlsandbox"
	cookieKey  = "sid"

	// maxBody caps request bodies (datasets included).
	maxBody = 32 << 20
)

// Handlers serves the sandbox API.
type Handlers struct {
	registry *Registry
	catalog  *fixture.Catalog
	cookies  sessions.Store
	notifier *notifier.Notifier
	logger   *slog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(reg *Registry, catalog *fixture.Catalog, cookies sessions.Store, notify *notifier.Notifier, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		registry: reg,
		catalog:  catalog,
		cookies:  cookies,
		notifier: notify,
		logger:   logger,
	}
}

// SessionInfo describes the caller's sandbox session.
type SessionInfo struct {
	ID     string `json:"id"`
	Bundle string `json:"bundle,omitempty"`
	Ready  bool   `json:"ready"`
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type datasetRequest struct {
	Columns []string        `json:"columns"`
	Rows    json.RawMessage `json:"rows"`
}

// cookieSession returns the cookie session. A cookie that no longer
// decodes (rotated key) yields a fresh session.
func (h *Handlers) cookieSession(r *http.Request) *sessions.Session {
	sess, err := h.cookies.Get(r, cookieName)
	if err != nil {
		h.logger.Debug("discarding unreadable session cookie", "error", err)
	}
	return sess
}

// lookup returns the caller's sandbox session, or nil.
func (h *Handlers) lookup(r *http.Request) *sandbox.Session {
	id, _ := h.cookieSession(r).Values[cookieKey].(string)
	if id == "" {
		return nil
	}
	s, _ := h.registry.Get(id)
	return s
}

// session resolves the caller's sandbox session or writes a not-ready
// failure for op.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request, op string) (*sandbox.Session, bool) {
	s := h.lookup(r)
	if s == nil {
		writeFailure(w, core.NotReady(op))
		return nil, false
	}
	return s, true
}

// CreateSession opens the caller's sandbox, creating it when the cookie
// does not name a live one.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	cookie := h.cookieSession(r)
	status := http.StatusOK

	s := h.lookup(r)
	if s == nil {
		var err error
		s, err = h.registry.Create()
		if errors.Is(err, ErrTooManySessions) {
			writeError(w, http.StatusServiceUnavailable, "", err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "", err.Error())
			return
		}
		cookie.Values[cookieKey] = s.ID()
		if err := cookie.Save(r, w); err != nil {
			h.registry.Remove(r.Context(), s.ID())
			writeError(w, http.StatusInternalServerError, "", fmt.Sprintf("failed to save session: %v", err))
			return
		}
		status = http.StatusCreated
	}

	if err := s.Open(r.Context()); err != nil {
		h.logger.Error("failed to open sandbox", "session", s.ID(), "error", err)
		writeFailure(w, err)
		return
	}
	writeJSON(w, status, SessionInfo{ID: s.ID(), Bundle: s.Bundle(), Ready: s.Ready()})
}

// DeleteSession closes the caller's sandbox and expires the cookie.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	cookie := h.cookieSession(r)
	if id, _ := cookie.Values[cookieKey].(string); id != "" {
		h.registry.Remove(r.Context(), id)
	}
	if cookie.Options != nil {
		cookie.Options.MaxAge = -1
	}
	delete(cookie.Values, cookieKey)
	if err := cookie.Save(r, w); err != nil {
		h.logger.Warn("failed to expire session cookie", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Query runs one statement and returns its outcome. The status code follows
// the outcome reason; the body is the outcome either way.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(core.ReasonInvalidInput), "invalid request body")
		return
	}

	var out core.Outcome
	if s := h.lookup(r); s != nil {
		out = s.Execute(r.Context(), req.SQL)
	} else {
		out = core.Failed(core.NotReady("execute"), 0)
	}

	body, err := encodeJSON(out)
	if err != nil {
		h.logger.Warn("query result is not JSON encodable", "error", err)
		out = core.Failed(&core.Failure{
			Op:     "execute",
			Reason: core.ReasonQueryFailed,
			Err:    fmt.Errorf("result cannot be sent as JSON: %w", err),
		}, out.Elapsed)
		writeJSON(w, StatusOf(out.Reason), out)
		return
	}
	writeBody(w, StatusOf(out.Reason), body)
}

// PutDataset replaces a table with the request body: a CSV document
// (text/csv), a JSON array of objects, or {"columns": [...], "rows": [...]}.
func (h *Handlers) PutDataset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "load dataset")
	if !ok {
		return
	}
	table := chi.URLParam(r, "table")

	records, columns, err := decodeDataset(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(core.ReasonInvalidInput), err.Error())
		return
	}
	if err := s.LoadDataset(r.Context(), table, records, columns...); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeDataset(r *http.Request) ([]core.Record, []string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		return dataset.ParseCSV(r.Body)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var req datasetRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, nil, fmt.Errorf("invalid dataset: %w", err)
		}
		if len(req.Rows) == 0 {
			return nil, req.Columns, nil
		}
		records, err := dataset.ParseJSON(bytes.NewReader(req.Rows))
		return records, req.Columns, err
	}
	records, err := dataset.ParseJSON(bytes.NewReader(body))
	return records, nil, err
}

// LoadSQL runs a caller-supplied DDL/DML script.
func (h *Handlers) LoadSQL(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "load sql")
	if !ok {
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(core.ReasonInvalidInput), "invalid request body")
		return
	}
	if err := s.LoadDatasetFromSQL(r.Context(), req.SQL); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reset drops every table of the caller's sandbox.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "reset")
	if !ok {
		return
	}
	if err := s.Reset(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tables lists the caller's tables.
func (h *Handlers) Tables(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "list tables")
	if !ok {
		return
	}
	tables, err := s.Tables(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// Describe returns the columns of one table.
func (h *Handlers) Describe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "describe")
	if !ok {
		return
	}
	table := chi.URLParam(r, "table")
	columns, err := s.Describe(r.Context(), table)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "columns": columns})
}

// FixtureSummary is the catalog listing entry of a fixture set.
type FixtureSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tables      []string `json:"tables"`
}

// Fixtures lists the fixture catalog.
func (h *Handlers) Fixtures(w http.ResponseWriter, _ *http.Request) {
	sets := h.catalog.List()
	out := make([]FixtureSummary, len(sets))
	for i, set := range sets {
		out[i] = FixtureSummary{Name: set.Name, Description: set.Description, Tables: set.TableNames()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fixtures": out})
}

// FixtureSQL returns the generated seed script of a fixture set.
func (h *Handlers) FixtureSQL(w http.ResponseWriter, r *http.Request) {
	set, ok := h.catalog.Get(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "", "fixture set not found")
		return
	}
	script, err := set.SQL()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/sql; charset=utf-8")
	_, _ = io.WriteString(w, script)
}

// SeedFixture runs a fixture set's script in the caller's sandbox.
func (h *Handlers) SeedFixture(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "seed")
	if !ok {
		return
	}
	set, found := h.catalog.Get(chi.URLParam(r, "name"))
	if !found {
		writeError(w, http.StatusNotFound, "", "fixture set not found")
		return
	}
	if err := s.Seed(r.Context(), set); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fixture": set.Name, "tables": set.TableNames()})
}

// Events streams catalog and session changes as datastar signal patches
// until the client goes away.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-updates:
			if !open {
				return
			}
			if err := sse.MarshalAndPatchSignals(h.signals(r, ev)); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (h *Handlers) signals(r *http.Request, ev notifier.Event) map[string]any {
	out := map[string]any{"event": string(ev)}
	switch ev {
	case notifier.FixturesChanged:
		names := []string{}
		for _, set := range h.catalog.List() {
			names = append(names, set.Name)
		}
		out["fixtures"] = names
	case notifier.SessionsSwept:
		id, _ := h.cookieSession(r).Values[cookieKey].(string)
		out["ready"] = id != "" && h.registry.Has(id)
	}
	return out
}

// Health reports liveness and the number of open sessions.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.registry.Len()})
}
