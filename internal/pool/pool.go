package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrExhausted is returned when no connection becomes available within
	// the acquire timeout while the pool is at maximum size.
	ErrExhausted = errors.New("pool: exhausted")

	// ErrClosed is returned by Acquire after the pool has been shut down.
	ErrClosed = errors.New("pool: closed")
)

// DefaultAcquireTimeout bounds how long a borrower blocks on a saturated
// pool when no timeout is configured.
const DefaultAcquireTimeout = 30 * time.Second

// Config holds the pool sizing and timeout settings.
type Config struct {
	MinSize        int
	MaxSize        int
	AcquireTimeout time.Duration
}

// Option configures a Pool.
type Option func(*Pool)

// WithReplaceHook registers a callback invoked each time the pool creates
// a replacement for a disposed connection.
func WithReplaceHook(fn func()) Option {
	return func(p *Pool) { p.onReplace = fn }
}

// Pool is a bounded set of live database sessions. Idle connections sit in
// a buffered channel; the channel doubles as the backpressure mechanism
// for borrowers when the pool is saturated.
type Pool struct {
	factory Factory
	cfg     Config

	idle   chan *Conn
	nextID atomic.Uint64

	mu     sync.Mutex // guards size, closed, and idle-channel writes
	size   int
	closed bool

	onReplace func()
}

// New creates a pool. No connections are opened until Warm or the first
// Acquire that grows the pool.
func New(factory Factory, cfg Config, opts ...Option) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("pool: factory is required")
	}
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("pool: max size must be positive, got %d", cfg.MaxSize)
	}
	if cfg.MinSize < 0 || cfg.MinSize > cfg.MaxSize {
		return nil, fmt.Errorf("pool: min size %d out of range [0, %d]", cfg.MinSize, cfg.MaxSize)
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}

	p := &Pool{
		factory: factory,
		cfg:     cfg,
		idle:    make(chan *Conn, cfg.MaxSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Warm synchronously creates MinSize connections so the first borrowers do
// not pay cold-start connection latency. A creation failure closes what
// was already opened and is returned to the caller; it is not retried.
func (p *Pool) Warm(ctx context.Context) error {
	for i := 0; i < p.cfg.MinSize; i++ {
		sess, err := p.factory.OpenSession(ctx)
		if err != nil {
			p.Close()
			return fmt.Errorf("pool: warm-up connection %d/%d: %w", i+1, p.cfg.MinSize, err)
		}
		c := p.newConn(sess)
		p.mu.Lock()
		p.size++
		p.idle <- c
		p.mu.Unlock()
	}
	return nil
}

// Acquire returns an idle connection, growing the pool if it is below
// MaxSize. At MaxSize it blocks until a connection is released, the
// configured timeout elapses (ErrExhausted), or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	select {
	case c := <-p.idle:
		c.transition(StateIdle, StateInUse)
		return c, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.size < p.cfg.MaxSize {
		p.size++
		p.mu.Unlock()

		sess, err := p.factory.OpenSession(ctx)
		if err != nil {
			p.mu.Lock()
			p.size--
			p.mu.Unlock()
			return nil, err
		}
		c := p.newConn(sess)
		c.transition(StateIdle, StateInUse)
		return c, nil
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case c := <-p.idle:
		c.transition(StateIdle, StateInUse)
		return c, nil
	case <-timer.C:
		return nil, ErrExhausted
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a connection to the pool. An unhealthy connection is
// disposed and, if the pool has fallen below MinSize, replaced with a
// fresh one; the replace hook fires once per successful replacement.
func (p *Pool) Release(c *Conn, healthy bool) {
	if c == nil {
		return
	}
	if !healthy {
		p.dispose(c)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.size--
		p.mu.Unlock()
		c.transition(StateInUse, StateDisposed)
		c.sess.Close()
		return
	}
	c.transition(StateInUse, StateIdle)
	p.idle <- c
	p.mu.Unlock()
}

func (p *Pool) dispose(c *Conn) {
	c.transition(StateInUse, StateDisposed)
	c.sess.Close()

	p.mu.Lock()
	p.size--
	replace := !p.closed && p.size < p.cfg.MinSize
	if replace {
		p.size++ // reserve the slot before unlocking
	}
	p.mu.Unlock()

	if !replace {
		return
	}

	sess, err := p.factory.OpenSession(context.Background())
	if err != nil {
		p.mu.Lock()
		p.size--
		p.mu.Unlock()
		return
	}
	fresh := p.newConn(sess)

	p.mu.Lock()
	if p.closed {
		p.size--
		p.mu.Unlock()
		fresh.transition(StateIdle, StateDisposed)
		sess.Close()
		return
	}
	p.idle <- fresh
	p.mu.Unlock()

	if p.onReplace != nil {
		p.onReplace()
	}
}

// Size returns the number of live connections, idle or borrowed.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// IdleCount returns how many connections are currently available.
func (p *Pool) IdleCount() int {
	return len(p.idle)
}

// Close drains the pool and closes every idle connection. Borrowed
// connections are closed as they come back through Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	for {
		select {
		case c := <-p.idle:
			c.transition(StateIdle, StateDisposed)
			if err := c.sess.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			p.size--
		default:
			return firstErr
		}
	}
}

func (p *Pool) newConn(sess Session) *Conn {
	return &Conn{id: p.nextID.Add(1), sess: sess}
}
