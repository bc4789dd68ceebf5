package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/config"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/server"
	"github.com/fleetguard/fleetguard/pkg/server/endpoints"
)

func defaultBindAddress() string {
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0"
}

func defaultPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8000"
}

func defaultPortInt() int {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	return 8000
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the fleetguard application server",
	Long: `Run the fleetguard application server.

To run the server requires the environment variable DATABASE_URL.

By default, database migrations are run on startup. Use --no-migrate to skip.
Changes to the organization settings of the config file are applied while
the server runs. Use --no-watch to disable.`,
	Run: func(cmd *cobra.Command, args []string) {
		if os.Getenv("DATABASE_URL") == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL environment variable is required")
			os.Exit(1)
		}

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			log.Println("Running database migrations...")
			if err := runMigrations(); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := openServices(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to initialise services: %v\n", err)
			os.Exit(1)
		}

		host, _ := cmd.Flags().GetString("bind-address")
		port, _ := cmd.Flags().GetString("port")
		s := server.NewServer(svc, cfg, host, port)
		endpoints.RegisterAll(s)

		if cfg.AuditPurgeInterval > 0 {
			purger := audit.NewPurger(svc.Ledger, svc.Policy.RetentionSource())
			go purger.Run(ctx, cfg.AuditPurgeInterval)
			log.Printf("Audit retention purge every %s", cfg.AuditPurgeInterval)
		}

		noWatch, _ := cmd.Flags().GetBool("no-watch")
		if !noWatch {
			if err := watchConfig(ctx, svc, cfg.ConfigFilePath()); err != nil {
				log.Printf("Not watching configuration: %v", err)
			}
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Printf("Shutdown failed: %v", err)
			}
		}()

		log.Printf("Running server at http://%s...\n", s.Addr())
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	},
}

// watchConfig pushes organization changes of the config file into the
// running policy and records each push in the audit log
func watchConfig(ctx context.Context, svc server.Services, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	watcher, err := config.NewWatcher(path)
	if err != nil {
		return err
	}

	log.Printf("Watching %s for organization changes", path)
	go func() {
		_ = watcher.Run(ctx, func(cfg *config.FleetguardConfig) {
			applied, err := config.ApplyOrganization(ctx, svc.Policy, cfg)
			if !applied && err == nil {
				return
			}
			in := audit.Intent{
				ActorID:      audit.SystemActor,
				Action:       audit.ActionUpdate,
				ResourceType: "organization",
				ResourceID:   model.DefaultOrganizationID,
				ResourceName: "configuration reload",
				Outcome:      model.OutcomeSuccess,
			}
			if err != nil {
				log.Printf("config: organization update rejected: %v", err)
				in.Outcome = model.OutcomeFailure
				in.Details = err.Error()
			}
			if _, err := svc.Ledger.Append(ctx, in); err != nil {
				log.Printf("config: failed to record organization update: %v", err)
			}
		})
	}()
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", defaultPort(), "server listen port")
	serverCmd.Flags().StringP("bind-address", "b", defaultBindAddress(), "server bind address")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
	serverCmd.Flags().Bool("no-watch", false, "don't apply config file changes while running")
}
