// Command ratelimitdemo drives a tgrl rate limiter under synthetic
// concurrent load and prints a snapshot of what got granted per priority
// (run) or a plot of bytes granted per refill period (drain).
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	rateBytesPerSec int64
	refillPeriodUs  int64
	fairness        int
	modeFlag        string
	single          bool
	tenants         int
	workers         int
	requestBytes    int64
	durationSeconds int
)

var rootCmd = &cobra.Command{
	Use:   "ratelimitdemo [command] (flags)",
	Short: "drives a tgrl rate limiter under synthetic load",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(runCmd, drainCmd)

	for _, cmd := range []*cobra.Command{runCmd, drainCmd} {
		cmd.Flags().Int64Var(
			&rateBytesPerSec, "rate", 10<<20, "aggregate refill rate, in bytes/sec")
		cmd.Flags().Int64Var(
			&refillPeriodUs, "refill-period", 100_000, "refill period, in microseconds")
		cmd.Flags().IntVar(
			&fairness, "fairness", 10, "legacy single-queue fairness (1-100, single-queue only)")
		cmd.Flags().StringVar(
			&modeFlag, "mode", "all", "which ops are throttled: reads-only, writes-only, or all")
		cmd.Flags().BoolVar(
			&single, "single-queue", false, "use the legacy single-queue limiter instead of the multi-tenant one")
		cmd.Flags().IntVar(
			&tenants, "tenants", 3, "number of distinct tenants generating load")
		cmd.Flags().Int64Var(
			&requestBytes, "request-bytes", 64<<10, "bytes requested per call")
	}

	runCmd.Flags().IntVar(
		&workers, "workers-per-tenant", 4, "concurrent requesting goroutines per tenant")
	runCmd.Flags().IntVar(
		&durationSeconds, "duration", 5, "how long to generate load, in seconds")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
