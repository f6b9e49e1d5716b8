package loader

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dbburn/dbburn/internal/driver"
	"github.com/dbburn/dbburn/internal/pool"
	"github.com/dbburn/dbburn/internal/stats"
	"github.com/dbburn/dbburn/internal/utils"
)

// testStatements returns placeholder-style statements; the fake sessions
// never parse them.
func testStatements() driver.Statements {
	return driver.Statements{
		Insert: "INSERT INTO load_test (id, thread_id, payload, version, created_at) VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP)",
		Select: "SELECT payload, version FROM load_test WHERE id = ?",
		Update: "UPDATE load_test SET payload = ?, version = version + 1 WHERE id = ? AND version = ?",
	}
}

// loadSession is a scriptable in-memory session. All sessions opened by
// one loadFactory share its failure budget and behavior switches.
type loadSession struct {
	f *loadFactory
}

type loadFactory struct {
	// failuresLeft makes the next N statements fail before recovering.
	failuresLeft atomic.Int64

	// updateAffected is what Exec reports for update statements.
	updateAffected atomic.Int64

	// selectNoRows makes every select scan fail with sql.ErrNoRows.
	selectNoRows atomic.Bool

	// openFails rejects all new sessions.
	openFails atomic.Bool

	opened atomic.Int64
	execs  atomic.Int64
}

func newLoadFactory() *loadFactory {
	f := &loadFactory{}
	f.updateAffected.Store(1)
	return f
}

func (f *loadFactory) OpenSession(ctx context.Context) (pool.Session, error) {
	if f.openFails.Load() {
		return nil, errors.New("connect refused")
	}
	f.opened.Add(1)
	return &loadSession{f: f}, nil
}

func (s *loadSession) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	s.f.execs.Add(1)
	if s.f.failuresLeft.Load() > 0 {
		s.f.failuresLeft.Add(-1)
		return 0, errors.New("connection reset")
	}
	return s.f.updateAffected.Load(), nil
}

func (s *loadSession) QueryRow(ctx context.Context, query string, args ...any) pool.Row {
	return loadRow{f: s.f}
}

func (s *loadSession) Close() error { return nil }

type loadRow struct {
	f *loadFactory
}

func (r loadRow) Scan(dest ...any) error {
	if r.f.failuresLeft.Load() > 0 {
		r.f.failuresLeft.Add(-1)
		return errors.New("connection reset")
	}
	if r.f.selectNoRows.Load() {
		return sql.ErrNoRows
	}
	if len(dest) == 2 {
		if p, ok := dest[0].(*string); ok {
			*p = "payload"
		}
		if v, ok := dest[1].(*int64); ok {
			*v = 1
		}
	}
	return nil
}

func newTestWorker(t *testing.T, f *loadFactory, reg *stats.Registry, poolCfg pool.Config, opts ...pool.Option) (*Worker, *pool.Pool) {
	t.Helper()
	p, err := pool.New(f, poolCfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}
	w := NewWorker(1, p, testStatements(), reg, utils.NewRandom(42))
	w.backoff = 0
	w.hotRowProb = 0
	w.payloadLen = 16
	return w, p
}

// runUntil runs the worker until cond reports true or the deadline hits.
func runUntil(t *testing.T, w *Worker, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("Condition not reached before deadline")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestWorkerCleanCycles(t *testing.T) {
	f := newLoadFactory()
	reg := stats.NewRegistry()
	w, p := newTestWorker(t, f, reg, pool.Config{MinSize: 1, MaxSize: 1, AcquireTimeout: time.Second})
	defer p.Close()

	runUntil(t, w, func() bool { return w.Cycles() >= 10 })

	snap := reg.Snapshot()
	if snap.Errors != 0 {
		t.Errorf("Errors = %d, want 0", snap.Errors)
	}
	if snap.Inserts != snap.Selects {
		t.Errorf("Inserts %d != Selects %d after clean cycles", snap.Inserts, snap.Selects)
	}
	if snap.Inserts != w.Cycles() {
		t.Errorf("Inserts %d != completed cycles %d", snap.Inserts, w.Cycles())
	}
	if snap.VersionConflicts != 0 {
		t.Errorf("VersionConflicts = %d, want 0", snap.VersionConflicts)
	}
}

func TestWorkerVersionConflictIsNotAnError(t *testing.T) {
	f := newLoadFactory()
	f.updateAffected.Store(0) // every update misses its version check
	reg := stats.NewRegistry()
	w, p := newTestWorker(t, f, reg, pool.Config{MinSize: 1, MaxSize: 1, AcquireTimeout: time.Second})
	defer p.Close()

	runUntil(t, w, func() bool { return w.Cycles() >= 5 })

	snap := reg.Snapshot()
	if snap.Errors != 0 {
		t.Errorf("Errors = %d, want 0; conflicts are not failures", snap.Errors)
	}
	if snap.VersionConflicts < 5 {
		t.Errorf("VersionConflicts = %d, want >= 5", snap.VersionConflicts)
	}
	if w.health.Streak() != 0 {
		t.Errorf("Conflicts advanced the failure streak to %d", w.health.Streak())
	}
}

func TestWorkerErrorStreakReplacesConnection(t *testing.T) {
	f := newLoadFactory()
	reg := stats.NewRegistry()
	w, p := newTestWorker(t, f, reg,
		pool.Config{MinSize: 1, MaxSize: 1, AcquireTimeout: time.Second},
		pool.WithReplaceHook(reg.IncConnectionReplacement))
	defer p.Close()

	f.failuresLeft.Store(5)

	runUntil(t, w, func() bool { return w.Cycles() >= 1 })

	snap := reg.Snapshot()
	if snap.Errors != 5 {
		t.Errorf("Errors = %d, want 5", snap.Errors)
	}
	if snap.ConnectionReplacements != 1 {
		t.Errorf("ConnectionReplacements = %d, want exactly 1", snap.ConnectionReplacements)
	}
	if w.health.Streak() != 0 {
		t.Errorf("Streak = %d after recovery, want 0", w.health.Streak())
	}
	// Warm-up conn plus one replacement.
	if got := f.opened.Load(); got != 2 {
		t.Errorf("Factory opened %d sessions, want 2", got)
	}
}

func TestWorkerShortStreakKeepsConnection(t *testing.T) {
	f := newLoadFactory()
	reg := stats.NewRegistry()
	w, p := newTestWorker(t, f, reg,
		pool.Config{MinSize: 1, MaxSize: 1, AcquireTimeout: time.Second},
		pool.WithReplaceHook(reg.IncConnectionReplacement))
	defer p.Close()

	f.failuresLeft.Store(3)

	runUntil(t, w, func() bool { return w.Cycles() >= 1 })

	snap := reg.Snapshot()
	if snap.Errors != 3 {
		t.Errorf("Errors = %d, want 3", snap.Errors)
	}
	if snap.ConnectionReplacements != 0 {
		t.Errorf("ConnectionReplacements = %d, want 0 below the threshold", snap.ConnectionReplacements)
	}
	if got := f.opened.Load(); got != 1 {
		t.Errorf("Factory opened %d sessions, want 1", got)
	}
}

func TestWorkerSelectNoRowsCountsAsError(t *testing.T) {
	f := newLoadFactory()
	f.selectNoRows.Store(true)
	reg := stats.NewRegistry()
	w, p := newTestWorker(t, f, reg, pool.Config{MinSize: 1, MaxSize: 1, AcquireTimeout: time.Second})
	defer p.Close()

	runUntil(t, w, func() bool { return reg.Snapshot().Errors >= 3 })

	snap := reg.Snapshot()
	if snap.Inserts < 3 {
		t.Errorf("Inserts = %d, want >= 3; inserts succeed before the select fails", snap.Inserts)
	}
	if snap.Selects != 0 {
		t.Errorf("Selects = %d, want 0", snap.Selects)
	}
	if w.Cycles() != 0 {
		t.Errorf("Cycles = %d, want 0; no cycle completed", w.Cycles())
	}
}

func TestWorkerAcquireFailureLeavesStreakAlone(t *testing.T) {
	f := newLoadFactory()
	reg := stats.NewRegistry()
	p, err := pool.New(f, pool.Config{MinSize: 0, MaxSize: 1, AcquireTimeout: 10 * time.Millisecond},
		pool.WithReplaceHook(reg.IncConnectionReplacement))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	// Hold the only connection so every worker acquire times out.
	held, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	w := NewWorker(1, p, testStatements(), reg, utils.NewRandom(42))
	w.backoff = 0
	w.hotRowProb = 0

	runUntil(t, w, func() bool { return reg.Snapshot().Errors >= 3 })
	p.Release(held, true)

	snap := reg.Snapshot()
	if w.health.Streak() != 0 {
		t.Errorf("Pool exhaustion advanced the streak to %d", w.health.Streak())
	}
	if snap.ConnectionReplacements != 0 {
		t.Errorf("ConnectionReplacements = %d, want 0", snap.ConnectionReplacements)
	}
}
