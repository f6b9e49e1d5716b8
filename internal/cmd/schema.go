package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dbburn/dbburn/internal/driver"
	"github.com/dbburn/dbburn/internal/ui"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema <type>",
	Short: "Output the load_test table DDL for a database type",
	Long: `Output the SQL needed to create the load_test table on the target
database. The table carries a version column for optimistic concurrency
and is hash-partitioned where the backend supports it.

Run this against the target database once before the first load test.

Examples:
  dbburn schema postgres | psql loadtest
  dbburn schema mysql | mysql -u root loadtest
  dbburn schema oracle -o load_test.sql`,
	Args: cobra.ExactArgs(1),
	Run:  runSchema,
}

var schemaOutputFile string

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVarP(&schemaOutputFile, "output", "o", "", "output file (default: stdout)")
}

func runSchema(cmd *cobra.Command, args []string) {
	u := ui.New()
	if noColor {
		u.SetNoColor(true)
	}

	kind, err := driver.ParseKind(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, u.Error(err.Error()))
		Exit(1)
	}
	dialect, err := driver.Lookup(kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, u.Error(err.Error()))
		Exit(1)
	}

	content := dialect.DDL()

	if schemaOutputFile != "" {
		// Ensure directory exists
		dir := filepath.Dir(schemaOutputFile)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				fmt.Fprintln(os.Stderr, u.Error(fmt.Sprintf("Creating directory: %v", err)))
				Exit(1)
			}
		}

		if err := os.WriteFile(schemaOutputFile, []byte(content), 0644); err != nil {
			fmt.Fprintln(os.Stderr, u.Error(fmt.Sprintf("Writing file: %v", err)))
			Exit(1)
		}
		fmt.Fprintln(os.Stderr, u.Success("Schema written to: "+schemaOutputFile))
	} else {
		fmt.Print(content)
	}
}
