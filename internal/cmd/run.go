package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbburn/dbburn/internal/config"
	"github.com/dbburn/dbburn/internal/loader"
	"github.com/dbburn/dbburn/internal/stats"
	"github.com/dbburn/dbburn/internal/ui"
)

var (
	// Target database
	dbType     string
	dbHost     string
	dbPort     int
	dbName     string
	dbUser     string
	dbPassword string

	// Load shape
	runWorkers         int
	runDuration        time.Duration
	runMinPool         int
	runMaxPool         int
	runAcquireTimeout  time.Duration
	runMonitorInterval time.Duration
	runSeed            int64

	configFile string
	jsonOutput bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against a database",
	Long: `Run a timed load test. Each worker loops through an insert, a
select of the inserted row, and an optimistic version-checked update,
drawing connections from a bounded self-healing pool.

Progress is reported at a fixed interval; the final report includes
throughput, success rate, version conflicts, connection replacements,
and per-operation latency percentiles.

Flags override values from the config file and DBBURN_* environment
variables. Ctrl+C ends the run early with a normal drain and report.

Examples:
  dbburn run --db-type postgres --host db1 --database loadtest --user app --password secret
  dbburn run --db-type mysql --host db1 --database loadtest --user app --password secret --workers 200
  dbburn run --db-type sqlite --database /tmp/burn.db --workers 10 --duration 30s --json`,
	Run: runLoad,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&dbType, "db-type", "", "database type: postgres, mysql, sqlserver, oracle, sqlite (required)")
	runCmd.Flags().StringVar(&dbHost, "host", "", "database host")
	runCmd.Flags().IntVar(&dbPort, "port", 0, "database port (0 = backend default)")
	runCmd.Flags().StringVar(&dbName, "database", "", "database name, Oracle service name, or SQLite file path")
	runCmd.Flags().StringVar(&dbUser, "user", "", "database user")
	runCmd.Flags().StringVar(&dbPassword, "password", "", "database password")

	runCmd.Flags().IntVar(&runWorkers, "workers", config.DefaultWorkers, "number of concurrent workers")
	runCmd.Flags().DurationVar(&runDuration, "duration", config.DefaultDuration, "test duration")
	runCmd.Flags().IntVar(&runMinPool, "min-pool", config.DefaultMinPoolSize, "minimum pool size (kept warm)")
	runCmd.Flags().IntVar(&runMaxPool, "max-pool", config.DefaultMaxPoolSize, "maximum pool size")
	runCmd.Flags().DurationVar(&runAcquireTimeout, "acquire-timeout", config.DefaultAcquireTimeout, "max wait for a pooled connection")
	runCmd.Flags().DurationVar(&runMonitorInterval, "monitor-interval", config.DefaultMonitorInterval, "progress reporting interval")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "random seed for reproducibility (0 = random)")

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (YAML/TOML/JSON)")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the final report as JSON")
}

func runLoad(cmd *cobra.Command, args []string) {
	u := ui.New()
	if noColor {
		u.SetNoColor(true)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, u.Error(err.Error()))
		Exit(1)
	}
	applyFlagOverrides(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, u.Error(err.Error()))
		Exit(1)
	}
	kind, _ := cfg.Database.ParsedKind()

	if !jsonOutput {
		fmt.Println(u.Header("dbburn Load Test"))
		fmt.Println()
		fmt.Println(u.KeyValue("Database", string(kind)))
		if cfg.Database.Host != "" {
			fmt.Println(u.KeyValue("Host", cfg.Database.Host))
		}
		fmt.Println(u.KeyValue("Target", cfg.Database.Database))
		fmt.Println(u.KeyValue("Workers", fmt.Sprintf("%d", cfg.Run.Workers)))
		fmt.Println(u.KeyValue("Duration", cfg.Run.Duration.String()))
		fmt.Println(u.KeyValue("Pool", fmt.Sprintf("%d min / %d max", cfg.Run.MinPoolSize, cfg.Run.MaxPoolSize)))
		if cfg.Run.Seed != 0 {
			fmt.Println(u.KeyValue("Seed", fmt.Sprintf("%d", cfg.Run.Seed)))
		}
		fmt.Println()
	}

	// Ctrl+C cancels the run context; the orchestrator treats that the
	// same as the duration elapsing and drains normally.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progress := func(line string) {
		if !jsonOutput {
			fmt.Println(u.Muted(line))
		}
	}

	// The warm-up spinner resolves when the orchestrator reaches Running;
	// per-phase notes are verbose-only.
	var warmSpin *ui.Spinner
	onPhase := func(ph loader.Phase) {
		if jsonOutput {
			return
		}
		switch ph {
		case loader.PhasePoolWarming:
			warmSpin = u.NewSpinner(fmt.Sprintf("Warming pool (%d connections)", cfg.Run.MinPoolSize))
			warmSpin.Start()
		case loader.PhaseRunning:
			warmSpin.Success("ready")
		}
		if verbose {
			fmt.Println(u.Muted("phase: " + ph.String()))
		}
	}

	orch := loader.New(cfg, loader.WithProgress(progress), loader.WithPhaseHook(onPhase))
	report, err := orch.Run(ctx)
	if err != nil {
		if warmSpin != nil {
			warmSpin.Error(err.Error())
		} else {
			fmt.Fprintln(os.Stderr, u.Error(err.Error()))
		}
		Exit(1)
	}

	if jsonOutput {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, u.Error(fmt.Sprintf("encoding report: %v", err)))
			Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	printReport(u, report)
}

// applyFlagOverrides copies explicitly-set CLI flags over the loaded
// configuration. Unset flags leave file and environment values alone.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("db-type") || cfg.Database.Kind == "" {
		cfg.Database.Kind = dbType
	}
	if cmd.Flags().Changed("host") {
		cfg.Database.Host = dbHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Database.Port = dbPort
	}
	if cmd.Flags().Changed("database") {
		cfg.Database.Database = dbName
	}
	if cmd.Flags().Changed("user") {
		cfg.Database.User = dbUser
	}
	if cmd.Flags().Changed("password") {
		cfg.Database.Password = dbPassword
	}

	if cmd.Flags().Changed("workers") {
		cfg.Run.Workers = runWorkers
	}
	if cmd.Flags().Changed("duration") {
		cfg.Run.Duration = runDuration
	}
	if cmd.Flags().Changed("min-pool") {
		cfg.Run.MinPoolSize = runMinPool
	}
	if cmd.Flags().Changed("max-pool") {
		cfg.Run.MaxPoolSize = runMaxPool
	}
	if cmd.Flags().Changed("acquire-timeout") {
		cfg.Run.AcquireTimeout = runAcquireTimeout
	}
	if cmd.Flags().Changed("monitor-interval") {
		cfg.Run.MonitorInterval = runMonitorInterval
	}
	if cmd.Flags().Changed("seed") {
		cfg.Run.Seed = runSeed
	}
}

func printReport(u *ui.UI, r *loader.Report) {
	fmt.Println()
	fmt.Println(u.Header("Results"))
	fmt.Println()
	fmt.Println(u.KeyValue("Run ID", r.RunID))
	fmt.Println(u.KeyValue("Elapsed", fmt.Sprintf("%.1fs", r.ElapsedSeconds)))
	fmt.Println(u.KeyValue("Transactions", fmt.Sprintf("%d (%.1f per worker)", r.Transactions, r.TransactionsPerWorker)))
	fmt.Println(u.KeyValue("Inserts", fmt.Sprintf("%d", r.Inserts)))
	fmt.Println(u.KeyValue("Selects", fmt.Sprintf("%d", r.Selects)))
	fmt.Println(u.KeyValue("Errors", fmt.Sprintf("%d", r.Errors)))
	fmt.Println(u.KeyValue("Version Conflicts", fmt.Sprintf("%d", r.VersionConflicts)))
	fmt.Println(u.KeyValue("Conn Replacements", fmt.Sprintf("%d", r.ConnectionReplacements)))
	fmt.Println(u.KeyValue("Average TPS", fmt.Sprintf("%.2f", r.AverageTPS)))
	fmt.Println(u.KeyValue("Success Rate", fmt.Sprintf("%.2f%%", r.SuccessRate*100)))
	fmt.Println()
	for _, op := range stats.Ops {
		s, ok := r.Latencies[op]
		if !ok || s.Count == 0 {
			continue
		}
		fmt.Println(u.KeyValue(fmt.Sprintf("%s latency", op),
			fmt.Sprintf("mean %s / p50 %s / p95 %s / p99 %s", s.Mean, s.P50, s.P95, s.P99)))
	}
	if !r.CleanShutdown {
		fmt.Println()
		fmt.Println(u.Warning("some workers were still busy when the drain window closed"))
	}
}
