package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fleetguardctl",
	Short: "Run and administer the fleetguard access control server",
	Long: `Run and administer the fleetguard access control server.

fleetguardctl serves the authorization and audit API, manages the database
schema and seeds the permission catalog, the organization and the
built-in roles.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
