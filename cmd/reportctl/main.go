// Command reportctl runs the bonus reconciliation offline, without the HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagBudgetTable string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "reportctl",
	Short:         "Quarterly bonus report CLI",
	Long:          "Reconcile a budget CSV against a timesheet XML and print the bonus dataset.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBudgetTable, "budget-table", os.Getenv("QR_BUDGET_TABLE"), "YAML/JSON budget table (default: built-in)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(runCmd, blocksCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
