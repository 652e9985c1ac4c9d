package cmd

import (
	"github.com/spf13/cobra"
)

var apiBase string

var rootCmd = &cobra.Command{
	Use:   "dashctl",
	Short: "Command-line client for the MT5 trading statistics dashboard",
	Long: `dashctl talks to a running dashboard server over its HTTP API.

It provides commands for:
  - Triggering deal-history and open-position syncs
  - Listing reconciled positions for a period
  - Period profit aggregates per magic and per group
  - Comparing equivalent trades across two accounts`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", "http://localhost:8080", "base URL of the dashboard server")
}
