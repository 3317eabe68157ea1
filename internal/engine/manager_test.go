package engine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/sqlsandbox/internal/testutil"
	"github.com/leapstack-labs/sqlsandbox/pkg/adapter"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const setupStmt = "SET threads = '1'"

func init() {
	adapter.Register("mock", func(cfg adapter.Config) (adapter.Bundle, error) {
		return adapter.Bundle{
			Driver: "sqlmock",
			DSN:    cfg.Path,
			Setup:  []string{setupStmt},
			Dialect: &adapter.Dialect{
				Name:       "mock",
				ListTables: "SELECT name FROM tables",
			},
		}, nil
	})
}

// mockOpener hands out sqlmock databases and counts how often it was called.
type mockOpener struct {
	calls   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
	mocks   []sqlmock.Sqlmock
	mu      sync.Mutex
	fail    func(call int32) error
	setup   func(mock sqlmock.Sqlmock)
	entered chan struct{}
	release chan struct{}
}

func (o *mockOpener) open(ctx context.Context, _ adapter.Bundle) (*sql.DB, error) {
	call := o.calls.Add(1)
	n := o.active.Add(1)
	defer o.active.Add(-1)
	for {
		p := o.peak.Load()
		if n <= p || o.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if o.entered != nil {
		o.entered <- struct{}{}
	}
	if o.release != nil {
		select {
		case <-o.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if o.fail != nil {
		if err := o.fail(call); err != nil {
			return nil, err
		}
	}

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		return nil, err
	}
	if o.setup != nil {
		o.setup(mock)
	} else {
		mock.ExpectExec(setupStmt).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectClose()
	}

	o.mu.Lock()
	o.mocks = append(o.mocks, mock)
	o.mu.Unlock()
	return db, nil
}

func newTestManager(t *testing.T, o *mockOpener) *Manager {
	t.Helper()
	return NewManager(Options{
		Bundle: adapter.Config{Type: "mock"},
		Opener: o.open,
		Logger: testutil.NewTestLogger(t),
	})
}

func TestManager_InitializeCaches(t *testing.T) {
	o := &mockOpener{}
	m := newTestManager(t, o)
	ctx := context.Background()

	assert.Nil(t, m.Cached())

	h1, err := m.Initialize(ctx)
	require.NoError(t, err)
	require.NotNil(t, h1)

	h2, err := m.Initialize(ctx)
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Same(t, h1, m.Cached())
	assert.Equal(t, int32(1), o.calls.Load())
	assert.Equal(t, 1, m.Initializations())
	assert.Equal(t, "mock", h1.Engine.Bundle.Name)
	assert.NotEmpty(t, h1.Engine.ID)

	m.Terminate(ctx)
	assert.Nil(t, m.Cached())
	require.NoError(t, o.mocks[0].ExpectationsWereMet())
}

func TestManager_ConcurrentInitializeSharesOneFlight(t *testing.T) {
	o := &mockOpener{release: make(chan struct{})}
	m := newTestManager(t, o)
	ctx := context.Background()

	const callers = 16
	results := make([]*Handles, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Initialize(ctx)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(o.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, int32(1), o.calls.Load())
	assert.Equal(t, 1, m.Initializations())

	m.Terminate(ctx)
}

func TestManager_FailedInitializeIsNotCached(t *testing.T) {
	boom := errors.New("bundle fetch failed")
	o := &mockOpener{fail: func(call int32) error {
		if call == 1 {
			return boom
		}
		return nil
	}}
	m := newTestManager(t, o)
	ctx := context.Background()

	h, err := m.Initialize(ctx)
	require.Error(t, err)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, core.ReasonEngineFailure, core.ReasonOf(err))
	assert.Nil(t, m.Cached())
	assert.Equal(t, 0, m.Initializations())

	h, err = m.Initialize(ctx)
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, int32(2), o.calls.Load())

	m.Terminate(ctx)
}

func TestManager_SetupFailureClosesEngine(t *testing.T) {
	o := &mockOpener{setup: func(mock sqlmock.Sqlmock) {
		mock.ExpectExec(setupStmt).WillReturnError(errors.New("unknown setting"))
		mock.ExpectClose()
	}}
	m := newTestManager(t, o)

	_, err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to run setup statement")
	assert.Nil(t, m.Cached())
	require.NoError(t, o.mocks[0].ExpectationsWereMet())
}

func TestManager_UnknownBundle(t *testing.T) {
	m := NewManager(Options{Bundle: adapter.Config{Type: "nope"}})

	_, err := m.Initialize(context.Background())
	require.Error(t, err)

	var unknown *adapter.UnknownBundleError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, core.ReasonEngineFailure, core.ReasonOf(err))
}

func TestManager_TerminateDuringInitialize(t *testing.T) {
	o := &mockOpener{entered: make(chan struct{}, 1), release: make(chan struct{})}
	m := newTestManager(t, o)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := m.Initialize(ctx)
		errc <- err
	}()

	<-o.entered
	m.Terminate(ctx)
	close(o.release)

	err := <-errc
	require.Error(t, err)
	assert.Equal(t, core.ReasonTerminated, core.ReasonOf(err))
	assert.Nil(t, m.Cached())
	assert.Equal(t, 0, m.Initializations())
	require.NoError(t, o.mocks[0].ExpectationsWereMet())
}

func TestManager_InitializeAfterTerminateWaitsForDiscardedFlight(t *testing.T) {
	o := &mockOpener{entered: make(chan struct{}, 2), release: make(chan struct{})}
	m := newTestManager(t, o)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := m.Initialize(ctx)
		first <- err
	}()
	<-o.entered
	m.Terminate(ctx)

	type result struct {
		h   *Handles
		err error
	}
	second := make(chan result, 1)
	go func() {
		h, err := m.Initialize(ctx)
		second <- result{h, err}
	}()

	assert.Never(t, func() bool { return o.calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	close(o.release)

	err := <-first
	assert.Equal(t, core.ReasonTerminated, core.ReasonOf(err))

	res := <-second
	require.NoError(t, res.err)
	assert.Same(t, res.h, m.Cached())
	assert.Equal(t, int32(2), o.calls.Load())
	assert.Equal(t, int32(1), o.peak.Load())
	assert.Equal(t, 1, m.Initializations())

	m.Terminate(ctx)
	for _, mock := range o.mocks {
		require.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestManager_ReinitializeAfterTerminate(t *testing.T) {
	o := &mockOpener{}
	m := newTestManager(t, o)
	ctx := context.Background()

	h1, err := m.Initialize(ctx)
	require.NoError(t, err)
	m.Terminate(ctx)

	assert.ErrorIs(t, h1.Conn.Exec(ctx, "SELECT 1"), ErrClosed)

	h2, err := m.Initialize(ctx)
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)
	assert.NotEqual(t, h1.Engine.ID, h2.Engine.ID)
	assert.Equal(t, 2, m.Initializations())

	m.Terminate(ctx)
	m.Terminate(ctx)
}

func TestManager_CallerCancellationDoesNotAbortFlight(t *testing.T) {
	o := &mockOpener{entered: make(chan struct{}, 1), release: make(chan struct{})}
	m := newTestManager(t, o)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := m.Initialize(ctx)
		errc <- err
	}()

	<-o.entered
	cancel()
	err := <-errc
	assert.Equal(t, core.ReasonCanceled, core.ReasonOf(err))

	close(o.release)
	h, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, int32(1), o.calls.Load())

	m.Terminate(context.Background())
}

func TestManager_InitTimeout(t *testing.T) {
	o := &mockOpener{release: make(chan struct{})}
	m := NewManager(Options{
		Bundle:      adapter.Config{Type: "mock"},
		Opener:      o.open,
		InitTimeout: 10 * time.Millisecond,
	})

	_, err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.ReasonTimeout, core.ReasonOf(err))
	assert.Nil(t, m.Cached())
}
