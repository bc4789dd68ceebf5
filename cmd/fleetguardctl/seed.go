package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetguard/fleetguard/pkg/seed"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register the permission catalog, the organization and the built-in roles",
	Long: `Register the permission catalog, the organization and the built-in roles.

Seeding is idempotent: running it again with the same inputs changes
nothing. Extra roles are read from an optional YAML file of the form

  roles:
    - name: Auditor
      description: Reads the audit log
      grants: [audit.view, audit.export]

Example:
  fleetguardctl seed
  fleetguardctl seed --roles-file roles.yml --admin alice --admin bob`,
	Run: func(cmd *cobra.Command, args []string) {
		rolesFile, _ := cmd.Flags().GetString("roles-file")
		admins, _ := cmd.Flags().GetStringSlice("admin")

		ctx := context.Background()
		cfg, err := loadConfig()
		exitOnError("Seed failed", err)
		stores, err := openStores()
		exitOnError("Seed failed", err)
		svc, err := newServices(ctx, stores, cfg)
		exitOnError("Seed failed", err)

		report, err := seed.Bootstrap(ctx, seed.Deps{
			Catalog:       svc.Catalog,
			Roles:         svc.Roles,
			Organizations: stores.Organizations,
			Ledger:        svc.Ledger,
		}, seed.Options{
			Organization: cfg.Organization(),
			RolesFile:    rolesFile,
			Admins:       admins,
		})
		fmt.Print(report.String())
		exitOnError("Seed failed", err)
		if !report.Changed() {
			fmt.Println("Nothing to do")
		}
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("roles-file", "", "YAML file of extra role definitions")
	seedCmd.Flags().StringSlice("admin", nil, "actor ID to assign the Admin role (repeatable)")
}
