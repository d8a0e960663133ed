package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "iptv-portal",
	Short: "IPTV portal: credential + IP login, provider binding, catalog browsing",
	Long:  `HTTP API for reseller playlist access. Commands: serve, probe, users.`,
	RunE:  runServe, // default: run the server (same as "iptv-portal serve")
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(usersCmd)
}

// Execute runs the root command and returns the error (for main to log.Fatal).
func Execute() error {
	return rootCmd.Execute()
}
