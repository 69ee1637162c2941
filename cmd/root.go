// Package cmd wires the CLI surface: serve, migrate, and version.
package cmd

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mcpguard",
		Short: "mcpguard ingests security scan results and evaluates policy gates",
		Long: "mcpguard is a multi-tenant service that normalizes scanner output, " +
			"evaluates pass/fail gate policies, and serves analytics over the stored findings.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the CLI with the given arguments.
func Execute(args []string) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}
