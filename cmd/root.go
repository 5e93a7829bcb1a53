/*
Copyright © 2026 The pglens Authors
*/
package cmd

import (
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var Version = "dev"

func init() {
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	}
	rootCmd.Version = Version
}

var rootCmd = &cobra.Command{
	Use:          "pglens",
	SilenceUsage: true,
	Short:        "Analyze PostgreSQL query plans",
	Long: `pglens inspects PostgreSQL EXPLAIN plans and the queries behind them.

It estimates resource usage from the plan tree, flags common problems
like unindexed sequential scans, proposes CREATE INDEX statements, and
can pull schema metadata for the referenced tables from a live server.`,
	Example: `  # Analyze a query against a saved connection profile
  pglens analyze query.sql --profile prod

  # Analyze saved EXPLAIN (FORMAT JSON) output offline
  pglens analyze plan.json

  # Assemble a metadata bundle for one query
  pglens bundle query.sql --profile prod

  # Inspect one table
  pglens schema orders --filter-columns status,created_at`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
