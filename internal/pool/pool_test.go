package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSession struct {
	closed atomic.Bool
}

func (s *fakeSession) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return 1, nil
}

func (s *fakeSession) QueryRow(ctx context.Context, query string, args ...any) Row {
	return fakeRow{}
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeRow struct{}

func (fakeRow) Scan(dest ...any) error { return nil }

// fakeFactory counts sessions and can be scripted to fail.
type fakeFactory struct {
	mu       sync.Mutex
	opened   int
	failNext int
	sessions []*fakeSession
}

func (f *fakeFactory) OpenSession(ctx context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return nil, errors.New("connect refused")
	}
	f.opened++
	s := &fakeSession{}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeFactory) openedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func newTestPool(t *testing.T, f Factory, cfg Config, opts ...Option) *Pool {
	t.Helper()
	p, err := New(f, cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewValidation(t *testing.T) {
	f := &fakeFactory{}

	if _, err := New(nil, Config{MaxSize: 1}); err == nil {
		t.Error("Nil factory accepted")
	}
	if _, err := New(f, Config{MaxSize: 0}); err == nil {
		t.Error("Zero max size accepted")
	}
	if _, err := New(f, Config{MinSize: 5, MaxSize: 3}); err == nil {
		t.Error("Min > max accepted")
	}
	if _, err := New(f, Config{MinSize: -1, MaxSize: 3}); err == nil {
		t.Error("Negative min accepted")
	}
}

func TestWarmCreatesMinSize(t *testing.T) {
	f := &fakeFactory{}
	p := newTestPool(t, f, Config{MinSize: 4, MaxSize: 8})

	if err := p.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if got := p.Size(); got != 4 {
		t.Errorf("Size = %d, want 4", got)
	}
	if got := p.IdleCount(); got != 4 {
		t.Errorf("IdleCount = %d, want 4", got)
	}
	if got := f.openedCount(); got != 4 {
		t.Errorf("Factory opened %d sessions, want 4", got)
	}
}

func TestWarmFailureClosesPool(t *testing.T) {
	f := &fakeFactory{failNext: 0}
	p := newTestPool(t, f, Config{MinSize: 3, MaxSize: 3})
	f.mu.Lock()
	f.failNext = 1 // first connection fails
	f.mu.Unlock()

	if err := p.Warm(context.Background()); err == nil {
		t.Fatal("Warm succeeded despite connection failure")
	}
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Acquire after failed warm = %v, want ErrClosed", err)
	}
}

func TestAcquireGrowsToMax(t *testing.T) {
	f := &fakeFactory{}
	p := newTestPool(t, f, Config{MinSize: 1, MaxSize: 3, AcquireTimeout: 50 * time.Millisecond})
	if err := p.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var conns []*Conn
	for i := 0; i < 3; i++ {
		c, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		if c.State() != StateInUse {
			t.Errorf("Acquired conn in state %v", c.State())
		}
		conns = append(conns, c)
	}
	if got := p.Size(); got != 3 {
		t.Errorf("Size = %d, want 3", got)
	}

	// At capacity, the next acquire must time out.
	if _, err := p.Acquire(ctx); !errors.Is(err, ErrExhausted) {
		t.Errorf("Acquire at capacity = %v, want ErrExhausted", err)
	}

	for _, c := range conns {
		p.Release(c, true)
	}
	if got := p.IdleCount(); got != 3 {
		t.Errorf("IdleCount after release = %d, want 3", got)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	f := &fakeFactory{}
	p := newTestPool(t, f, Config{MinSize: 0, MaxSize: 1, AcquireTimeout: time.Second})

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan *Conn, 1)
	go func() {
		c2, err := p.Acquire(ctx)
		if err != nil {
			t.Errorf("Blocked acquire: %v", err)
		}
		got <- c2
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(c, true)

	select {
	case c2 := <-got:
		if c2.ID() != c.ID() {
			t.Errorf("Expected the released conn back, got id %d", c2.ID())
		}
	case <-time.After(time.Second):
		t.Fatal("Blocked acquire never completed")
	}
}

func TestExactlyOneExhaustedAtCapacity(t *testing.T) {
	f := &fakeFactory{}
	p := newTestPool(t, f, Config{MinSize: 2, MaxSize: 2, AcquireTimeout: 100 * time.Millisecond})
	if err := p.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Three borrowers against two connections: two succeed and hold, one
	// times out with ErrExhausted.
	ctx := context.Background()
	results := make(chan error, 3)
	release := make(chan struct{})

	for i := 0; i < 3; i++ {
		go func() {
			c, err := p.Acquire(ctx)
			results <- err
			if err == nil {
				<-release
				p.Release(c, true)
			}
		}()
	}

	var errs []error
	for i := 0; i < 3; i++ {
		errs = append(errs, <-results)
	}
	close(release)

	exhausted := 0
	for _, err := range errs {
		if errors.Is(err, ErrExhausted) {
			exhausted++
		} else if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if exhausted != 1 {
		t.Errorf("Got %d ErrExhausted, want exactly 1", exhausted)
	}
}

func TestUnhealthyReleaseDisposesAndReplaces(t *testing.T) {
	f := &fakeFactory{}
	var replacements atomic.Int64
	p := newTestPool(t, f, Config{MinSize: 2, MaxSize: 4},
		WithReplaceHook(func() { replacements.Add(1) }))
	if err := p.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}

	c, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sess := c.Session().(*fakeSession)

	p.Release(c, false)

	if c.State() != StateDisposed {
		t.Errorf("Disposed conn in state %v", c.State())
	}
	if !sess.closed.Load() {
		t.Error("Disposed session was not closed")
	}
	if got := p.Size(); got != 2 {
		t.Errorf("Size after replacement = %d, want 2 (min size restored)", got)
	}
	if got := replacements.Load(); got != 1 {
		t.Errorf("Replace hook fired %d times, want 1", got)
	}

	// The disposed conn's id must never reappear.
	seen := make(map[uint64]bool)
	for i := 0; i < 2; i++ {
		c2, err := p.Acquire(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if c2.ID() == c.ID() {
			t.Error("Disposed connection was handed out again")
		}
		seen[c2.ID()] = true
	}
}

func TestDisposeAboveMinDoesNotReplace(t *testing.T) {
	f := &fakeFactory{}
	var replacements atomic.Int64
	p := newTestPool(t, f, Config{MinSize: 1, MaxSize: 3, AcquireTimeout: 50 * time.Millisecond},
		WithReplaceHook(func() { replacements.Add(1) }))
	if err := p.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Grow to 3, then dispose one: size 2 is still >= min 1, no replacement.
	ctx := context.Background()
	c1, _ := p.Acquire(ctx)
	c2, _ := p.Acquire(ctx)
	c3, _ := p.Acquire(ctx)

	opened := f.openedCount()
	p.Release(c1, false)

	if got := p.Size(); got != 2 {
		t.Errorf("Size = %d, want 2", got)
	}
	if got := replacements.Load(); got != 0 {
		t.Errorf("Replace hook fired %d times, want 0", got)
	}
	if f.openedCount() != opened {
		t.Error("A replacement session was opened above min size")
	}

	p.Release(c2, true)
	p.Release(c3, true)
}

func TestReplacementFailureShrinksPool(t *testing.T) {
	f := &fakeFactory{}
	p := newTestPool(t, f, Config{MinSize: 1, MaxSize: 1, AcquireTimeout: 50 * time.Millisecond})
	if err := p.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}

	c, _ := p.Acquire(context.Background())
	f.mu.Lock()
	f.failNext = 1
	f.mu.Unlock()

	p.Release(c, false)

	if got := p.Size(); got != 0 {
		t.Errorf("Size after failed replacement = %d, want 0", got)
	}

	// The next acquire can still grow the pool back.
	c2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after failed replacement: %v", err)
	}
	p.Release(c2, true)
}

func TestAcquireContextCancellation(t *testing.T) {
	f := &fakeFactory{}
	p := newTestPool(t, f, Config{MinSize: 0, MaxSize: 1, AcquireTimeout: 10 * time.Second})

	c, _ := p.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := p.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire = %v, want context.Canceled", err)
	}
	p.Release(c, true)
}

func TestCloseDrainsIdle(t *testing.T) {
	f := &fakeFactory{}
	p := newTestPool(t, f, Config{MinSize: 3, MaxSize: 3})
	if err := p.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}

	c, _ := p.Acquire(context.Background())

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := p.IdleCount(); got != 0 {
		t.Errorf("IdleCount after close = %d, want 0", got)
	}
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Acquire after close = %v, want ErrClosed", err)
	}

	// The borrowed connection is closed on its way back in.
	sess := c.Session().(*fakeSession)
	p.Release(c, true)
	if !sess.closed.Load() {
		t.Error("Borrowed session not closed after release into closed pool")
	}
	if got := p.Size(); got != 0 {
		t.Errorf("Size after full drain = %d, want 0", got)
	}

	// Close is idempotent.
	if err := p.Close(); err != nil {
		t.Errorf("Second close: %v", err)
	}
}

func TestConnStateString(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateIdle, "idle"},
		{StateInUse, "in-use"},
		{StateDisposed, "disposed"},
		{ConnState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
