package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var verbose bool
var noColor bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbburn",
	Short: "Multi-database load generator with optimistic concurrency",
	Long: `dbburn drives a sustained insert/select/update workload against a
relational database through a bounded, self-healing connection pool.

Each worker runs a tight cycle: insert a row, read it back, then apply an
optimistic version-checked update. Failed connections are disposed and
replaced; per-operation latencies and throughput are reported at the end.

Supported backends: postgres, mysql, sqlserver, oracle, sqlite.

Example usage:
  dbburn run --db-type postgres --host db1 --database loadtest --user app --password secret
  dbburn run --db-type sqlite --database /tmp/burn.db --workers 10 --duration 30s
  dbburn schema postgres | psql loadtest`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colors and animations")

	// Silence usage on error - we'll print our own messages
	rootCmd.SilenceUsage = true

	// Set version template
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// Exit with code
func Exit(code int) {
	os.Exit(code)
}
