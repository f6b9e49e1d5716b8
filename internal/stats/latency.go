package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Op identifies one workload operation type for latency tracking.
type Op string

const (
	OpInsert Op = "insert"
	OpSelect Op = "select"
	OpUpdate Op = "update"
)

// Ops lists the tracked operation types in reporting order.
var Ops = []Op{OpInsert, OpSelect, OpUpdate}

// latency histogram range: 1µs to 60s at 3 significant figures.
const (
	histMin = int64(time.Microsecond)
	histMax = int64(time.Minute)
)

// LatencyRecorder tracks per-operation latency distributions. Each
// histogram has its own mutex held only for the single recorded value, so
// recording never serializes workers against each other across operations.
type LatencyRecorder struct {
	hists map[Op]*lockedHistogram
}

type lockedHistogram struct {
	mu sync.Mutex
	h  *hdrhistogram.Histogram
}

// LatencySummary is a point-in-time digest of one operation's latencies.
type LatencySummary struct {
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// NewLatencyRecorder creates recorders for every tracked operation.
func NewLatencyRecorder() *LatencyRecorder {
	hists := make(map[Op]*lockedHistogram, len(Ops))
	for _, op := range Ops {
		hists[op] = &lockedHistogram{h: hdrhistogram.New(histMin, histMax, 3)}
	}
	return &LatencyRecorder{hists: hists}
}

// Record adds one sample. Durations outside the histogram range are
// clamped rather than dropped.
func (r *LatencyRecorder) Record(op Op, d time.Duration) {
	lh, ok := r.hists[op]
	if !ok {
		return
	}
	v := int64(d)
	if v < histMin {
		v = histMin
	}
	if v > histMax {
		v = histMax
	}
	lh.mu.Lock()
	lh.h.RecordValue(v)
	lh.mu.Unlock()
}

// Summaries returns a digest per operation type.
func (r *LatencyRecorder) Summaries() map[Op]LatencySummary {
	out := make(map[Op]LatencySummary, len(r.hists))
	for op, lh := range r.hists {
		lh.mu.Lock()
		out[op] = LatencySummary{
			Count: lh.h.TotalCount(),
			Mean:  time.Duration(lh.h.Mean()),
			P50:   time.Duration(lh.h.ValueAtQuantile(50)),
			P95:   time.Duration(lh.h.ValueAtQuantile(95)),
			P99:   time.Duration(lh.h.ValueAtQuantile(99)),
		}
		lh.mu.Unlock()
	}
	return out
}
