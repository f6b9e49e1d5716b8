package stats

import (
	"fmt"
	"sync"
	"time"
)

// Monitor samples the registry on a fixed interval and emits one progress
// line per tick. It holds no authority over workers and never mutates
// counters.
type Monitor struct {
	reg      *Registry
	interval time.Duration
	emit     func(string)

	done chan struct{}
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMonitor creates a monitor. emit receives each rendered progress line;
// passing nil discards output.
func NewMonitor(reg *Registry, interval time.Duration, emit func(string)) *Monitor {
	if emit == nil {
		emit = func(string) {}
	}
	return &Monitor{
		reg:      reg,
		interval: interval,
		emit:     emit,
		done:     make(chan struct{}),
	}
}

// Start launches the sampling goroutine.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.loop()
	})
}

// Stop halts sampling and waits for the goroutine to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	prev := m.reg.Snapshot()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			cur := m.reg.Snapshot()
			m.emit(FormatProgress(cur, prev))
			prev = cur
		}
	}
}

// FormatProgress renders one monitor line from consecutive snapshots.
func FormatProgress(cur, prev Snapshot) string {
	return fmt.Sprintf(
		"inserts=%d selects=%d errors=%d conflicts=%d replacements=%d avg_tps=%.2f interval_tps=%.2f elapsed=%.1fs",
		cur.Inserts,
		cur.Selects,
		cur.Errors,
		cur.VersionConflicts,
		cur.ConnectionReplacements,
		cur.AverageTPS(),
		IntervalTPS(cur, prev),
		cur.Elapsed.Seconds(),
	)
}
