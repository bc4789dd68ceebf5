package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetguard/fleetguard/pkg/audit"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and maintain the audit log",
	Long:  `Inspect and maintain the audit log.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'audit' requires a subcommand (list, stats, purge)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var auditPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete audit entries older than the retention window",
	Long: `Delete audit entries older than the organization's retention window.

The purge itself is recorded as a new audit entry.

Example:
  fleetguardctl audit purge`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := mustServices(ctx)

		result, err := audit.NewPurger(svc.Ledger, svc.Policy.RetentionSource()).RunOnce(ctx)
		exitOnError("Purge failed", err)
		fmt.Printf("Purged %d entries older than %s\n", result.Purged, result.Cutoff.Format(time.RFC3339))
	},
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries, newest first",
	Long: `List audit entries, newest first.

Example:
  fleetguardctl audit list --actor alice --since 24h
  fleetguardctl audit list --min-risk 60 --output json`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		var f audit.Filter
		f.Actor, _ = flags.GetString("actor")
		f.Action, _ = flags.GetString("action")
		f.ResourceType, _ = flags.GetString("resource-type")
		f.Search, _ = flags.GetString("search")
		f.MinRiskScore, _ = flags.GetInt("min-risk")
		f.Limit, _ = flags.GetInt("limit")
		if since, _ := flags.GetDuration("since"); since > 0 {
			f.Since = time.Now().UTC().Add(-since)
		}
		output, _ := flags.GetString("output")

		ctx := context.Background()
		svc := mustServices(ctx)
		entries, total, err := svc.Ledger.Query(ctx, f)
		exitOnError("Query failed", err)

		if output == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			exitOnError("Encoding failed", enc.Encode(map[string]interface{}{"entries": entries, "total": total}))
			return
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %-10s %-8s %-24s %-8s risk=%d\n",
				e.ID, e.Timestamp.Format(time.RFC3339), e.ActorID, e.Action,
				e.PermissionKey, e.Outcome, e.RiskScore)
		}
		fmt.Printf("%d of %d entries\n", len(entries), total)
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise audit entries by risk tier",
	Long: `Summarise the audit entries of the last days by risk tier, action and actor.

Example:
  fleetguardctl audit stats --days 7`,
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")
		if days < 1 {
			fmt.Fprintln(os.Stderr, "days must be at least 1")
			os.Exit(1)
		}

		ctx := context.Background()
		svc := mustServices(ctx)
		until := time.Now().UTC()
		summary, err := svc.Ledger.RiskSummary(ctx, until.AddDate(0, 0, -days), until)
		exitOnError("Summary failed", err)

		fmt.Printf("Entries in the last %d days: %d\n", days, summary.Total)
		fmt.Printf("  low: %d  medium: %d  high: %d\n", summary.Low, summary.Medium, summary.High)
		for _, a := range audit.Actions() {
			if n := summary.ByAction[string(a)]; n > 0 {
				fmt.Printf("  %-12s %d\n", a, n)
			}
		}
		for _, actor := range summary.TopActors {
			fmt.Printf("  actor %s: %d\n", actor.ActorID, actor.Count)
		}
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditPurgeCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditStatsCmd)

	auditListCmd.Flags().String("actor", "", "actor ID or email substring")
	auditListCmd.Flags().String("action", "", "audit action")
	auditListCmd.Flags().String("resource-type", "", "resource type")
	auditListCmd.Flags().String("search", "", "substring of email, resource or permission")
	auditListCmd.Flags().Int("min-risk", 0, "minimum risk score")
	auditListCmd.Flags().Duration("since", 0, "only entries newer than this duration")
	auditListCmd.Flags().IntP("limit", "n", 50, "maximum number of entries")
	auditListCmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	auditStatsCmd.Flags().Int("days", 30, "window in days")
}
