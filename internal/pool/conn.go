// Package pool provides a bounded, thread-safe pool of live database
// sessions shared by all load workers. It owns the session lifecycle:
// create on warm-up or demand, hand out to exactly one borrower at a time,
// and dispose-and-replace sessions flagged unhealthy on return.
package pool

import (
	"context"
	"sync/atomic"
)

// Row is the single-row scan surface the workload needs.
type Row interface {
	Scan(dest ...any) error
}

// Session is one live database session. Exec returns the number of rows
// affected, which the workload uses to detect optimistic-update conflicts.
type Session interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Close() error
}

// Factory opens new sessions for the pool.
type Factory interface {
	OpenSession(ctx context.Context) (Session, error)
}

// ConnState tracks where a pooled connection is in its lifecycle.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateInUse
	StateDisposed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInUse:
		return "in-use"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Conn wraps one live session owned by the pool. A Conn is held by at most
// one borrower at a time; a disposed Conn is never handed out again.
type Conn struct {
	id    uint64
	sess  Session
	state atomic.Int32
}

// ID returns the pool-unique connection id.
func (c *Conn) ID() uint64 { return c.id }

// Session returns the underlying database session.
func (c *Conn) Session() Session { return c.sess }

// State returns the connection's current lifecycle state.
func (c *Conn) State() ConnState { return ConnState(c.state.Load()) }

func (c *Conn) transition(from, to ConnState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}
