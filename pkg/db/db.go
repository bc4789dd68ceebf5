package db

import (
	"errors"
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	storegorm "github.com/fleetguard/fleetguard/pkg/store/gorm"
)

// ErrNoDatabaseURL is returned when no connection URL is configured
var ErrNoDatabaseURL = errors.New("DATABASE_URL environment variable is required")

// Config holds database connection configuration
type Config struct {
	// URL is the database connection URL (defaults to DATABASE_URL env var)
	URL string
}

// Connect establishes a database connection with the audit immutability
// plugin installed.
// If no URL is provided, it reads from DATABASE_URL environment variable.
func Connect(cfg Config) (*gorm.DB, error) {
	dbURL := cfg.URL
	if dbURL == "" {
		dbURL = URL()
	}
	if dbURL == "" {
		return nil, ErrNoDatabaseURL
	}

	return Open(postgres.New(postgres.Config{
		DSN:                  dbURL,
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}))
}

// Open opens dialector with fleetguard's gorm settings. Tests use it with a
// sqlmock-backed dialector.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	// Default to silent logging unless FLEETGUARD_LOG_LEVEL=debug is set
	logMode := logger.Silent
	if os.Getenv("FLEETGUARD_LOG_LEVEL") == "debug" {
		logMode = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logMode),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Use(storegorm.AuditImmutability{}); err != nil {
		return nil, fmt.Errorf("failed to install audit immutability: %w", err)
	}

	return db, nil
}

// URL returns the database URL from environment.
// Returns empty string if DATABASE_URL is not set.
func URL() string {
	return os.Getenv("DATABASE_URL")
}
