package loader

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/dbburn/dbburn/internal/config"
	"github.com/dbburn/dbburn/internal/driver"
	"github.com/dbburn/dbburn/internal/pool"
	"github.com/dbburn/dbburn/internal/stats"
	"github.com/dbburn/dbburn/internal/utils"
)

// Worker is one concurrent load session. Each cycle it borrows a
// connection, inserts a fresh record, reads a record's version back, and
// attempts an optimistic version-checked update. All outcomes are absorbed
// into the shared counters; nothing propagates out of Run.
type Worker struct {
	id    int
	tag   string
	pool  *pool.Pool
	stmts driver.Statements
	reg   *stats.Registry
	rng   *utils.Random

	health *HealthTracker

	payloadLen int
	hotRowProb float64
	hotRowID   int64
	backoff    time.Duration

	cycles atomic.Int64
}

// NewWorker creates a worker with the compile-time defaults for payload
// size, hot-row probability, and error backoff.
func NewWorker(id int, p *pool.Pool, stmts driver.Statements, reg *stats.Registry, rng *utils.Random) *Worker {
	return &Worker{
		id:         id,
		tag:        fmt.Sprintf("worker-%04d", id),
		pool:       p,
		stmts:      stmts,
		reg:        reg,
		rng:        rng,
		health:     NewHealthTracker(config.ErrorStreakThreshold),
		payloadLen: config.PayloadLength,
		hotRowProb: config.HotRowProbability,
		hotRowID:   config.HotRowID,
		backoff:    config.ErrorBackoff,
	}
}

// Cycles returns how many full cycles this worker completed.
func (w *Worker) Cycles() int64 { return w.cycles.Load() }

// Run executes cycles until ctx is done. The stop signal is observed only
// at cycle boundaries; a cycle already underway runs to completion so no
// partial workload state is left behind.
func (w *Worker) Run(ctx context.Context) {
	// Statements get a detached context: a cycle either completes or
	// fails on its own terms, never by mid-statement cancellation.
	opCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := w.pool.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Pool exhaustion or connection creation failure: a counted
			// cycle error, never a crash. No connection is implicated,
			// so the health streak is untouched.
			w.reg.IncError()
			w.sleep(ctx)
			continue
		}

		if err := w.cycle(opCtx, conn.Session()); err != nil {
			w.reg.IncError()
			if w.health.RecordError() == Replace {
				w.pool.Release(conn, false)
				w.health.Reset()
			} else {
				w.pool.Release(conn, true)
			}
			w.sleep(ctx)
			continue
		}

		w.health.RecordSuccess()
		w.pool.Release(conn, true)
		w.cycles.Add(1)
	}
}

// cycle performs one insert, one select, and one conditional update. A
// conditional update that matches zero rows is a version conflict: an
// expected concurrency outcome, counted separately and not an error.
func (w *Worker) cycle(ctx context.Context, sess pool.Session) error {
	id := w.nextKey()
	payload := w.rng.String(w.payloadLen)

	start := time.Now()
	if _, err := sess.Exec(ctx, w.stmts.Insert, id, w.tag, payload); err != nil {
		return fmt.Errorf("insert id=%d: %w", id, err)
	}
	w.reg.IncInsert()
	w.reg.RecordLatency(stats.OpInsert, time.Since(start))

	// Usually re-read the row just inserted; sometimes the shared hot row,
	// so the version check sees genuine cross-worker races.
	target := id
	if w.hotRowProb > 0 && w.rng.Probability(w.hotRowProb) {
		target = w.hotRowID
	}

	start = time.Now()
	var got string
	var version int64
	if err := sess.QueryRow(ctx, w.stmts.Select, target).Scan(&got, &version); err != nil {
		// Includes sql.ErrNoRows: a row not yet visible under the
		// backend's isolation level is counted, not retried.
		return fmt.Errorf("select id=%d: %w", target, err)
	}
	w.reg.IncSelect()
	w.reg.RecordLatency(stats.OpSelect, time.Since(start))

	start = time.Now()
	affected, err := sess.Exec(ctx, w.stmts.Update, w.rng.String(w.payloadLen), target, version)
	if err != nil {
		return fmt.Errorf("update id=%d: %w", target, err)
	}
	w.reg.RecordLatency(stats.OpUpdate, time.Since(start))
	if affected == 0 {
		w.reg.IncVersionConflict()
	}
	return nil
}

// nextKey generates a record key. Keys are drawn from a 63-bit space well
// above the hot-row id; collisions across workers surface as ordinary
// duplicate-key errors.
func (w *Worker) nextKey() int64 {
	return w.rng.Int64Range(w.hotRowID+1, math.MaxInt64-1)
}

func (w *Worker) sleep(ctx context.Context) {
	if w.backoff <= 0 {
		return
	}
	select {
	case <-time.After(w.backoff):
	case <-ctx.Done():
	}
}
