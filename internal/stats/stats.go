// Package stats holds the process-wide performance counters shared by all
// load workers, plus the background monitor that samples them. Counter
// writes are single atomic increments; readers take point-in-time
// snapshots and never block writers.
package stats

import (
	"sync/atomic"
	"time"
)

// Registry aggregates workload counters across all workers.
type Registry struct {
	inserts                atomic.Int64
	selects                atomic.Int64
	errors                 atomic.Int64
	versionConflicts       atomic.Int64
	connectionReplacements atomic.Int64

	start   time.Time
	latency *LatencyRecorder
}

// NewRegistry creates a registry with the start timestamp set to now.
func NewRegistry() *Registry {
	return &Registry{
		start:   time.Now(),
		latency: NewLatencyRecorder(),
	}
}

func (r *Registry) IncInsert()                { r.inserts.Add(1) }
func (r *Registry) IncSelect()                { r.selects.Add(1) }
func (r *Registry) IncError()                 { r.errors.Add(1) }
func (r *Registry) IncVersionConflict()       { r.versionConflicts.Add(1) }
func (r *Registry) IncConnectionReplacement() { r.connectionReplacements.Add(1) }

// RecordLatency records one operation duration for percentile reporting.
func (r *Registry) RecordLatency(op Op, d time.Duration) {
	r.latency.Record(op, d)
}

// Latencies returns per-operation latency summaries.
func (r *Registry) Latencies() map[Op]LatencySummary {
	return r.latency.Summaries()
}

// Snapshot is a consistent-enough point-in-time view of the counters.
// Individual loads are atomic; the set is not taken under a lock, which is
// fine for rate reporting.
type Snapshot struct {
	Inserts                int64
	Selects                int64
	Errors                 int64
	VersionConflicts       int64
	ConnectionReplacements int64
	Elapsed                time.Duration
}

// Snapshot reads all counters and the elapsed time.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		Inserts:                r.inserts.Load(),
		Selects:                r.selects.Load(),
		Errors:                 r.errors.Load(),
		VersionConflicts:       r.versionConflicts.Load(),
		ConnectionReplacements: r.connectionReplacements.Load(),
		Elapsed:                time.Since(r.start),
	}
}

// Completed returns the number of completed operations (inserts+selects).
func (s Snapshot) Completed() int64 {
	return s.Inserts + s.Selects
}

// AverageTPS is completed operations per second since the run started.
func (s Snapshot) AverageTPS() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Completed()) / secs
}

// SuccessRate is completed / (completed + errors), in [0, 1]. An empty
// snapshot reports 1: nothing was attempted, nothing failed.
func (s Snapshot) SuccessRate() float64 {
	total := s.Completed() + s.Errors
	if total == 0 {
		return 1
	}
	return float64(s.Completed()) / float64(total)
}

// IntervalTPS is completed operations per second between two snapshots.
func IntervalTPS(cur, prev Snapshot) float64 {
	dt := (cur.Elapsed - prev.Elapsed).Seconds()
	if dt <= 0 {
		return 0
	}
	return float64(cur.Completed()-prev.Completed()) / dt
}
