package loader

import (
	"github.com/dbburn/dbburn/internal/config"
	"github.com/dbburn/dbburn/internal/driver"
	"github.com/dbburn/dbburn/internal/stats"
)

// Report is the final result of a run. Field values, not wording, are the
// compatibility surface; it marshals directly to JSON for machine
// consumers.
type Report struct {
	RunID    string `json:"run_id"`
	Database string `json:"database"`
	Workers  int    `json:"workers"`

	ConfiguredSeconds float64 `json:"configured_seconds"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`

	Inserts                int64 `json:"inserts"`
	Selects                int64 `json:"selects"`
	Errors                 int64 `json:"errors"`
	VersionConflicts       int64 `json:"version_conflicts"`
	ConnectionReplacements int64 `json:"connection_replacements"`

	AverageTPS            float64 `json:"average_tps"`
	SuccessRate           float64 `json:"success_rate"`
	Transactions          int64   `json:"transactions"`
	TransactionsPerWorker float64 `json:"transactions_per_worker"`

	// CleanShutdown is false when workers were still mid-cycle at the end
	// of the drain window.
	CleanShutdown bool `json:"clean_shutdown"`

	Latencies map[stats.Op]stats.LatencySummary `json:"latencies"`
}

func newReport(runID string, kind driver.Kind, run *config.RunConfig, reg *stats.Registry, transactions int64, clean bool) *Report {
	snap := reg.Snapshot()
	perWorker := 0.0
	if run.Workers > 0 {
		perWorker = float64(transactions) / float64(run.Workers)
	}
	return &Report{
		RunID:                  runID,
		Database:               string(kind),
		Workers:                run.Workers,
		ConfiguredSeconds:      run.Duration.Seconds(),
		ElapsedSeconds:         snap.Elapsed.Seconds(),
		Inserts:                snap.Inserts,
		Selects:                snap.Selects,
		Errors:                 snap.Errors,
		VersionConflicts:       snap.VersionConflicts,
		ConnectionReplacements: snap.ConnectionReplacements,
		AverageTPS:             snap.AverageTPS(),
		SuccessRate:            snap.SuccessRate(),
		Transactions:           transactions,
		TransactionsPerWorker:  perWorker,
		CleanShutdown:          clean,
		Latencies:              reg.Latencies(),
	}
}
