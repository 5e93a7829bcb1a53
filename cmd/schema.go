/*
Copyright © 2026 The pglens Authors
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pglens/pglens/internal/catalog"
	"github.com/pglens/pglens/internal/config"
	"github.com/pglens/pglens/internal/output"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <table>",
	Short: "Show catalog metadata for a table",
	Long: `Show what the server knows about a table: the planner's row estimate,
existing indexes, and, for the given filter columns, their types and
statistics plus which of them no index covers as a leading column.

The table name may be schema-qualified; unqualified names default to
the public schema.`,
	Example: `  # Indexes and row estimate
  pglens schema orders --profile prod

  # Include column detail for candidate filter columns
  pglens schema sales.orders --filter-columns status,created_at --profile prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _ := cmd.Flags().GetString("db")
		profileName, _ := cmd.Flags().GetString("profile")
		format, _ := cmd.Flags().GetString("format")
		filterColumns, _ := cmd.Flags().GetStringSlice("filter-columns")

		if format != "text" && format != "json" {
			return fmt.Errorf("invalid output format %q: must be \"text\" or \"json\"", format)
		}

		connStr, err := config.ResolveConnStr(db, profileName)
		if err != nil {
			return err
		}
		if connStr == "" {
			return fmt.Errorf("database connection required: pass --db or --profile, or set a default profile")
		}

		cat, err := catalog.Connect(cmd.Context(), connStr)
		if err != nil {
			return err
		}
		defer func() { _ = cat.Close(cmd.Context()) }()

		info, err := cat.TableInfo(cmd.Context(), args[0], filterColumns)
		if err != nil {
			return err
		}

		if format == "json" {
			return output.RenderJSON(os.Stdout, info)
		}
		return output.RenderTableText(os.Stdout, info)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringP("db", "d", "", "PostgreSQL connection string")
	schemaCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	schemaCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	schemaCmd.Flags().StringSlice("filter-columns", nil, "Columns to fetch types and statistics for")
	schemaCmd.MarkFlagsMutuallyExclusive("db", "profile")
}
