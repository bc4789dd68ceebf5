package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/server"
)

// roleCmd represents the role command
var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage roles",
	Long: `Manage roles, their grants and their assignments.

Every change is recorded in the audit log under the actor given with
--actor, or "system" if none is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'role' requires a subcommand (create, grant, revoke, deactivate, assign)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var roleCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a custom role",
	Long: `Create a custom role with an initial set of grants.

Example:
  fleetguardctl role create Auditor --grant audit.view --grant audit.export`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		grants, _ := cmd.Flags().GetStringSlice("grant")

		runRoleChange(cmd, audit.Intent{
			Action:        audit.ActionCreate,
			ResourceType:  "role",
			ResourceName:  args[0],
			PermissionKey: "roles.create",
			Details:       "grants: " + strings.Join(grants, ", "),
		}, func(ctx context.Context, c roleContext) (string, error) {
			role, err := c.svc.Roles.CreateRole(ctx, args[0], description, grants)
			if err != nil {
				return "", err
			}
			c.intent.ResourceID = role.ID
			return fmt.Sprintf("Created role %s (%s)", role.Name, role.ID), nil
		})
	},
}

var roleGrantCmd = &cobra.Command{
	Use:   "grant <role> <permission>",
	Short: "Grant a permission to a role",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runRoleChange(cmd, audit.Intent{
			Action:        audit.ActionUpdate,
			ResourceType:  "role",
			ResourceName:  args[0],
			PermissionKey: "roles.edit",
			Details:       "grant " + args[1],
		}, func(ctx context.Context, c roleContext) (string, error) {
			if err := c.svc.Roles.Grant(ctx, args[0], args[1]); err != nil {
				return "", err
			}
			return fmt.Sprintf("Granted %s to %s", args[1], args[0]), nil
		})
	},
}

var roleRevokeCmd = &cobra.Command{
	Use:   "revoke <role> <permission>",
	Short: "Revoke a permission from a role",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runRoleChange(cmd, audit.Intent{
			Action:        audit.ActionUpdate,
			ResourceType:  "role",
			ResourceName:  args[0],
			PermissionKey: "roles.edit",
			Details:       "revoke " + args[1],
		}, func(ctx context.Context, c roleContext) (string, error) {
			if err := c.svc.Roles.Revoke(ctx, args[0], args[1]); err != nil {
				return "", err
			}
			return fmt.Sprintf("Revoked %s from %s", args[1], args[0]), nil
		})
	},
}

var roleDeactivateCmd = &cobra.Command{
	Use:   "deactivate <role>",
	Short: "Deactivate a role and its assignments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRoleChange(cmd, audit.Intent{
			Action:        audit.ActionUpdate,
			ResourceType:  "role",
			ResourceName:  args[0],
			PermissionKey: "roles.edit",
		}, func(ctx context.Context, c roleContext) (string, error) {
			n, err := c.svc.Roles.Deactivate(ctx, args[0])
			if err != nil {
				return "", err
			}
			c.intent.Details = fmt.Sprintf("deactivated, %d assignments deactivated", n)
			return fmt.Sprintf("Deactivated %s and %d assignment(s)", args[0], n), nil
		})
	},
}

var roleAssignCmd = &cobra.Command{
	Use:   "assign <role> <actor>",
	Short: "Assign a role to an actor",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runRoleChange(cmd, audit.Intent{
			Action:        audit.ActionUpdate,
			ResourceType:  "role_assignment",
			ResourceID:    args[1],
			ResourceName:  args[0],
			PermissionKey: "roles.assign",
		}, func(ctx context.Context, c roleContext) (string, error) {
			if err := c.svc.Roles.Assign(ctx, args[1], args[0], c.intent.ActorID); err != nil {
				return "", err
			}
			return fmt.Sprintf("Assigned %s to %s", args[0], args[1]), nil
		})
	},
}

// roleContext is what a role change runs against
type roleContext struct {
	svc    server.Services
	intent *audit.Intent
}

// runRoleChange performs change and records in with its outcome
func runRoleChange(cmd *cobra.Command, in audit.Intent, change func(context.Context, roleContext) (string, error)) {
	in.ActorID, _ = cmd.Flags().GetString("actor")
	if in.ActorID == "" {
		in.ActorID = audit.SystemActor
	}

	ctx := context.Background()
	svc := mustServices(ctx)
	if p, err := svc.Catalog.Lookup(ctx, in.PermissionKey); err == nil {
		in.RiskLevel = p.RiskLevel
	}

	msg, err := change(ctx, roleContext{svc: svc, intent: &in})
	recordAdmin(ctx, svc, in, err)
	exitOnError("Role change failed", err)
	fmt.Println(msg)
}

func init() {
	rootCmd.AddCommand(roleCmd)
	roleCmd.PersistentFlags().String("actor", "", "actor ID recorded in the audit log")

	roleCmd.AddCommand(roleCreateCmd)
	roleCmd.AddCommand(roleGrantCmd)
	roleCmd.AddCommand(roleRevokeCmd)
	roleCmd.AddCommand(roleDeactivateCmd)
	roleCmd.AddCommand(roleAssignCmd)

	roleCreateCmd.Flags().StringP("description", "d", "", "role description")
	roleCreateCmd.Flags().StringSlice("grant", nil, "permission key to grant (repeatable)")
}
