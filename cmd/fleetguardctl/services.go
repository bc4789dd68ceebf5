package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/config"
	"github.com/fleetguard/fleetguard/pkg/db"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/server"
	"github.com/fleetguard/fleetguard/pkg/store"
	storegorm "github.com/fleetguard/fleetguard/pkg/store/gorm"
)

// loadConfig loads and validates the configuration
func loadConfig() (*config.FleetguardConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStores connects to DATABASE_URL
func openStores() (store.Stores, error) {
	database, err := db.Connect(db.Config{})
	if err != nil {
		return store.Stores{}, err
	}
	return storegorm.NewStores(database), nil
}

// newServices wires the services over stores. Audit lines of
// administrative commands go to stderr so that stdout stays parseable.
func newServices(ctx context.Context, stores store.Stores, cfg *config.FleetguardConfig) (server.Services, error) {
	logger := audit.NewLogger()
	logger.SetWriter(os.Stderr)
	return server.NewServices(ctx, stores, cfg, audit.WithLogger(logger))
}

// openServices connects to DATABASE_URL and wires the services over it
func openServices(ctx context.Context, cfg *config.FleetguardConfig) (server.Services, error) {
	stores, err := openStores()
	if err != nil {
		return server.Services{}, err
	}
	return newServices(ctx, stores, cfg)
}

// mustServices loads the configuration and the services or exits
func mustServices(ctx context.Context) server.Services {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	svc, err := openServices(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to initialise services: %v\n", err)
		os.Exit(1)
	}
	return svc
}

// recordAdmin appends the audit entry of an administrative command
func recordAdmin(ctx context.Context, svc server.Services, in audit.Intent, opErr error) {
	if in.ActorID == "" {
		in.ActorID = audit.SystemActor
	}
	in.Outcome = model.OutcomeSuccess
	if opErr != nil {
		in.Outcome = model.OutcomeFailure
		in.Details = opErr.Error()
	}
	if _, err := svc.Ledger.Append(ctx, in); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record audit entry: %v\n", err)
	}
}

// exitOnError prints err and exits when it is set
func exitOnError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
