package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for byteforge.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "byteforge",
		Short: "Security assessment job orchestrator",
		Long: `byteforge runs security assessment jobs against registered targets.

A job is one of recon, crawl, vulnerability-scan, active-probe, composite
or report. Jobs are executed in-process or handed to Redis workers, and
their findings are stored encrypted in a local SQLite database.

External scanners (subfinder, katana, gospider, nuclei) are used when
installed. Missing tools fall back to clearly labelled simulated output.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .byteforge in current or home directory)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewWorkerCmd())
	cmd.AddCommand(NewTargetCmd())
	cmd.AddCommand(NewJobCmd())
	cmd.AddCommand(NewFindingsCmd())
	cmd.AddCommand(NewScheduleCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
