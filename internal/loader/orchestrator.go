package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dbburn/dbburn/internal/config"
	"github.com/dbburn/dbburn/internal/driver"
	"github.com/dbburn/dbburn/internal/pool"
	"github.com/dbburn/dbburn/internal/stats"
	"github.com/dbburn/dbburn/internal/utils"
)

// Phase is the orchestrator's lifecycle position.
type Phase int32

const (
	PhaseConfiguring Phase = iota
	PhasePoolWarming
	PhaseRunning
	PhaseDraining
	PhaseReporting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseConfiguring:
		return "configuring"
	case PhasePoolWarming:
		return "pool-warming"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseReporting:
		return "reporting"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// SessionFactory is what the orchestrator needs from the driver layer:
// session creation for the pool, one-off statement execution for setup
// work, and handle shutdown.
type SessionFactory interface {
	pool.Factory

	// Exec runs a statement outside the pool.
	Exec(ctx context.Context, query string, args ...any) error

	Close() error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress routes monitor progress lines and lifecycle notes to fn.
func WithProgress(fn func(string)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithFactory substitutes the session factory, bypassing the real driver.
func WithFactory(f SessionFactory) Option {
	return func(o *Orchestrator) { o.factory = f }
}

// WithPhaseHook invokes fn on every phase transition, from the goroutine
// driving Run.
func WithPhaseHook(fn func(Phase)) Option {
	return func(o *Orchestrator) { o.onPhase = fn }
}

// Orchestrator owns one load-test run end to end: it validates the
// configuration, warms the pool, launches workers and the monitor, holds
// for the test duration, drains, and produces the final report.
//
// Any error it returns happened before Running; once workers start, all
// failures are absorbed into counters and the run completes normally.
type Orchestrator struct {
	cfg      *config.Config
	factory  SessionFactory
	progress func(string)
	onPhase  func(Phase)
	phase    atomic.Int32
	runID    string
}

// New creates an orchestrator for one run.
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		progress: func(string) {},
		onPhase:  func(Phase) {},
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunID returns the unique identifier stamped on this run's report.
func (o *Orchestrator) RunID() string { return o.runID }

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase { return Phase(o.phase.Load()) }

func (o *Orchestrator) setPhase(p Phase) {
	o.phase.Store(int32(p))
	o.onPhase(p)
}

// Run executes the full lifecycle and returns the final report. A non-nil
// error means the run never reached the Running phase.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	o.setPhase(PhaseConfiguring)
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	kind, err := o.cfg.Database.ParsedKind()
	if err != nil {
		return nil, err
	}
	dialect, err := driver.Lookup(kind)
	if err != nil {
		return nil, err
	}
	stmts := dialect.Statements()
	run := o.cfg.Run

	o.setPhase(PhasePoolWarming)
	if o.factory == nil {
		// Headroom of one over the pool cap so seeding the hot row never
		// competes with pooled sessions for a driver connection.
		f, err := driver.NewFactory(dialect, o.cfg.Database.ConnParams(), run.MaxPoolSize+1)
		if err != nil {
			return nil, err
		}
		o.factory = f
	}
	defer o.factory.Close()

	reg := stats.NewRegistry()
	p, err := pool.New(o.factory, pool.Config{
		MinSize:        run.MinPoolSize,
		MaxSize:        run.MaxPoolSize,
		AcquireTimeout: run.AcquireTimeout,
	}, pool.WithReplaceHook(reg.IncConnectionReplacement))
	if err != nil {
		return nil, err
	}
	if err := p.Warm(ctx); err != nil {
		return nil, err
	}
	o.seedHotRow(ctx, stmts)

	o.setPhase(PhaseRunning)
	runCtx, cancel := context.WithTimeout(ctx, run.Duration)
	defer cancel()

	rng := utils.NewRandom(run.Seed)
	workers := make([]*Worker, run.Workers)
	var wg sync.WaitGroup
	for i, r := range rng.ForkN(run.Workers) {
		w := NewWorker(i+1, p, stmts, reg, r)
		workers[i] = w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(runCtx)
		}()
	}

	monitor := stats.NewMonitor(reg, run.MonitorInterval, o.progress)
	monitor.Start()

	<-runCtx.Done()

	o.setPhase(PhaseDraining)
	drainTimeout := run.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = config.DefaultDrainTimeout
	}
	clean := waitTimeout(&wg, drainTimeout)
	monitor.Stop()

	o.setPhase(PhaseReporting)
	var transactions int64
	for _, w := range workers {
		transactions += w.Cycles()
	}
	report := newReport(o.runID, kind, &run, reg, transactions, clean)
	if err := p.Close(); err != nil {
		o.progress(fmt.Sprintf("pool close: %v", err))
	}

	o.setPhase(PhaseDone)
	return report, nil
}

// seedHotRow inserts the shared contention row. A duplicate-key failure
// from a previous run is expected and ignored.
func (o *Orchestrator) seedHotRow(ctx context.Context, stmts driver.Statements) {
	_ = o.factory.Exec(ctx, stmts.Insert, int64(config.HotRowID), "seed", "hot row")
}

// waitTimeout waits on wg up to d; false means workers were still busy
// when the drain window closed.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
