/*
Copyright © 2026 The pglens Authors
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pglens/pglens/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file from a commented template",
	Long: `Create the pglens config file with a commented template.

The config file stores estimator settings and named connection
profiles. An existing file is never overwritten without --force.`,
	Example: `  # Create default config
  pglens init

  # Overwrite existing config
  pglens init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path, err := config.Init(force)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote config template to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "Overwrite existing config file")
}
