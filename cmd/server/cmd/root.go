package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Gatherly server - events and registrations backend",
	Long: `Gatherly server is the backend for the Gatherly events app.

It serves the REST API for accounts, events, registrations with an
approve/reject workflow, organization profiles and follows, favorites,
and in-app notifications.`,
	// With no subcommand, run serve.
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute runs the CLI. Called once from main.
func Execute() {
	// A .env file is a development convenience; absence is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}
