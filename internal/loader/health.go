// Package loader contains the load-generation engine: per-session workers
// driving the insert/select/update cycle, the connection-health state
// machine, and the orchestrator that owns a run from configuration through
// the final report.
package loader

import "fmt"

// HealthState classifies a worker's view of its current connection based
// on the consecutive-failure streak.
type HealthState int

const (
	// Healthy means the last operation succeeded.
	Healthy HealthState = iota

	// Degraded means one or more consecutive failures below the threshold.
	Degraded

	// Replace means the streak reached the threshold; the connection
	// should be disposed at release time.
	Replace
)

func (s HealthState) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("HealthState(%d)", int(s))
	}
}

// HealthTracker is the per-worker failure-streak state machine. It is
// owned by exactly one worker and needs no locking.
type HealthTracker struct {
	state     HealthState
	streak    int
	threshold int
}

// NewHealthTracker creates a tracker that flags Replace after threshold
// consecutive errors.
func NewHealthTracker(threshold int) *HealthTracker {
	if threshold < 1 {
		threshold = 1
	}
	return &HealthTracker{threshold: threshold}
}

// RecordError advances the streak and returns the resulting state.
func (t *HealthTracker) RecordError() HealthState {
	t.streak++
	if t.streak >= t.threshold {
		t.state = Replace
	} else {
		t.state = Degraded
	}
	return t.state
}

// RecordSuccess resets the streak.
func (t *HealthTracker) RecordSuccess() {
	t.streak = 0
	t.state = Healthy
}

// Reset clears the streak after the connection has been replaced, so the
// fresh connection starts with a clean slate.
func (t *HealthTracker) Reset() {
	t.streak = 0
	t.state = Healthy
}

// State returns the current state.
func (t *HealthTracker) State() HealthState { return t.state }

// Streak returns the current consecutive-failure count.
func (t *HealthTracker) Streak() int { return t.streak }
