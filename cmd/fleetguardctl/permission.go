package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// permissionCmd represents the permission command
var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Inspect the permission catalog",
	Long:  `Inspect the permission catalog.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'permission' requires a subcommand (list)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var permissionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered permissions",
	Long: `List registered permissions ordered by key.

Example:
  fleetguardctl permission list
  fleetguardctl permission list --category audit`,
	Run: func(cmd *cobra.Command, args []string) {
		category, _ := cmd.Flags().GetString("category")

		ctx := context.Background()
		svc := mustServices(ctx)
		permissions, err := svc.Catalog.List(ctx, category)
		exitOnError("Listing permissions failed", err)

		for _, p := range permissions {
			flags := ""
			if p.RequiresMFA {
				flags += " mfa"
			}
			if p.RequiresApproval {
				flags += " approval"
			}
			if p.Deprecated {
				flags += " deprecated"
			}
			fmt.Printf("%-28s risk=%d%s\n", p.Key, p.RiskLevel, flags)
		}
	},
}

func init() {
	rootCmd.AddCommand(permissionCmd)
	permissionCmd.AddCommand(permissionListCmd)
	permissionListCmd.Flags().StringP("category", "c", "", "only permissions of this category")
}
