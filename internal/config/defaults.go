// Package config supplies run configuration for dbburn: compile-time
// defaults here, file/env/flag overrides in config.go.
package config

import "time"

// Run shape defaults, matching a mid-size saturation test.
const (
	// DefaultWorkers is the number of concurrent load sessions.
	DefaultWorkers = 100

	// DefaultDuration is how long the Running phase holds.
	DefaultDuration = 300 * time.Second

	// DefaultMinPoolSize is the number of connections pre-created before
	// any worker is admitted.
	DefaultMinPoolSize = 100

	// DefaultMaxPoolSize caps live connections under any concurrency.
	DefaultMaxPoolSize = 200
)

// Timing defaults.
const (
	// DefaultAcquireTimeout bounds a single blocked pool acquire; it is
	// independent of the run deadline.
	DefaultAcquireTimeout = 30 * time.Second

	// DefaultMonitorInterval is the progress-line sampling period.
	DefaultMonitorInterval = 5 * time.Second

	// DefaultDrainTimeout bounds the wait for workers to finish their
	// in-flight cycle at shutdown.
	DefaultDrainTimeout = 30 * time.Second
)

// Worker behavior. Compile-time constants; edit and rebuild.
const (
	// ErrorStreakThreshold is the consecutive-failure count that flags a
	// worker's connection for disposal and replacement.
	ErrorStreakThreshold = 5

	// ErrorBackoff is the pause after a failed cycle so a dead backend is
	// not hammered in a tight loop.
	ErrorBackoff = 500 * time.Millisecond

	// PayloadLength is the generated payload size in characters.
	PayloadLength = 500

	// HotRowProbability is the fraction of cycles that read and update the
	// shared contention row instead of the row just inserted, so the
	// optimistic version check sees real cross-worker races.
	HotRowProbability = 0.10

	// HotRowID is the key of the shared contention row.
	HotRowID = 1
)
