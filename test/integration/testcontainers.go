package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fleetguard/fleetguard/pkg/config"
	"github.com/fleetguard/fleetguard/pkg/db"
	"github.com/fleetguard/fleetguard/pkg/seed"
	"github.com/fleetguard/fleetguard/pkg/server"
	"github.com/fleetguard/fleetguard/pkg/server/endpoints"
	storegorm "github.com/fleetguard/fleetguard/pkg/store/gorm"
)

// signingKey is shared by the server and the test process
const signingKey = "integration-approval-signing-key-0123456789"

// Admins seeded into every test database
var seededAdmins = []string{"admin-1", "admin-2"}

// TestContext holds all the resources needed for integration tests
type TestContext struct {
	RawDB       *sql.DB
	Services    server.Services
	Container   testcontainers.Container
	ServerURL   string
	DatabaseURL string
	HTTPClient  *http.Client

	cancel        context.CancelFunc
	serverProcess *exec.Cmd
	inlineServer  *server.Server
}

// NewTestContext creates a new test context with PostgreSQL testcontainer.
// Modes:
//   - Binary mode (default): Set FLEETGUARD_BINARY to the path of the fleetguardctl binary
//   - Inline mode: Set FLEETGUARD_INLINE=1 to run the server in-process (no binary needed)
func NewTestContext(ctx context.Context) (*TestContext, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}
	migrationsDir := filepath.Join(projectRoot, "db", "migrations")

	inlineMode := os.Getenv("FLEETGUARD_INLINE") == "1"
	binaryPath := os.Getenv("FLEETGUARD_BINARY")

	if !inlineMode && binaryPath == "" {
		return nil, errors.New("either FLEETGUARD_BINARY or FLEETGUARD_INLINE=1 is required\n\nBinary mode:\n  go build -o fleetguardctl ./cmd/fleetguardctl\n  INTEGRATION_TEST=1 FLEETGUARD_BINARY=$(pwd)/fleetguardctl go test -v ./test/integration/...\n\nInline mode:\n  INTEGRATION_TEST=1 FLEETGUARD_INLINE=1 go test -v ./test/integration/...")
	}
	if !inlineMode {
		if _, err := os.Stat(binaryPath); err != nil {
			return nil, fmt.Errorf("FLEETGUARD_BINARY path does not exist: %s", binaryPath)
		}
		log.Printf("Using binary: %s", binaryPath)
	} else {
		log.Println("Using inline server mode")
	}

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fleetguard_test"),
		tcpostgres.WithUsername("fleetguard"),
		tcpostgres.WithPassword("fleetguard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	if err := runMigrations(migrationsDir, connStr); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	database, err := db.Connect(db.Config{URL: connStr})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, err
	}
	rawDB, err := database.DB()
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get raw db: %w", err)
	}

	cfg := config.Default()
	cfg.ApprovalSigningKey = signingKey
	stores := storegorm.NewStores(database)
	svc, err := server.NewServices(ctx, stores, cfg)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to create services: %w", err)
	}
	if _, err := seed.Bootstrap(ctx, seed.Deps{
		Catalog:       svc.Catalog,
		Roles:         svc.Roles,
		Organizations: stores.Organizations,
		Ledger:        svc.Ledger,
	}, seed.Options{Admins: seededAdmins}); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	tc := &TestContext{
		RawDB:       rawDB,
		Services:    svc,
		Container:   pgContainer,
		DatabaseURL: connStr,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
	}

	serverPort := "18080"
	tc.ServerURL = "http://127.0.0.1:" + serverPort
	if inlineMode {
		tc.inlineServer, tc.cancel = startInlineServer(svc, cfg, serverPort)
	} else {
		tc.serverProcess, tc.cancel, err = startBinary(binaryPath, connStr, serverPort)
		if err != nil {
			tc.Close(ctx)
			return nil, fmt.Errorf("failed to start server binary: %w", err)
		}
	}

	if err := waitForServer(tc.ServerURL, 30*time.Second); err != nil {
		tc.Close(ctx)
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}
	return tc, nil
}

// startInlineServer starts the server in-process over the test services
func startInlineServer(svc server.Services, cfg *config.FleetguardConfig, port string) (*server.Server, context.CancelFunc) {
	s := server.NewServer(svc, cfg, "127.0.0.1", port)
	endpoints.RegisterAll(s)

	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("inline server stopped: %v", err)
		}
	}()

	return s, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}
}

// startBinary starts the fleetguardctl server binary
func startBinary(binaryPath, dbURL, port string) (*exec.Cmd, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Use --no-migrate since we already ran migrations in the test setup
	cmd := exec.CommandContext(ctx, binaryPath, "server", "--no-migrate", "--no-watch", "-b", "127.0.0.1", "-p", port)
	cmd.Env = append(os.Environ(),
		"DATABASE_URL="+dbURL,
		"FLEETGUARD_APPROVAL_SIGNING_KEY="+signingKey,
		"FLEETGUARD_CONFIG_PATH="+os.TempDir(),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to start binary: %w", err)
	}

	return cmd, cancel, nil
}

// waitForServer polls the status endpoint until it responds or times out
func waitForServer(serverURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(serverURL + "/status")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server did not become ready within %v", timeout)
}

// Close cleans up all test resources
func (tc *TestContext) Close(ctx context.Context) {
	if tc.cancel != nil {
		tc.cancel()
	}
	if tc.serverProcess != nil && tc.serverProcess.Process != nil {
		_ = tc.serverProcess.Process.Kill()
		_ = tc.serverProcess.Wait()
	}
	if tc.RawDB != nil {
		_ = tc.RawDB.Close()
	}
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
}

// findProjectRoot locates the project root directory
func findProjectRoot() (string, error) {
	paths := []string{
		"../..",
		"..",
		".",
	}

	for _, p := range paths {
		goMod := filepath.Join(p, "go.mod")
		if _, err := os.Stat(goMod); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", fmt.Errorf("project root not found (looking for go.mod)")
}

// runMigrations applies the up migrations of migrationsDir
func runMigrations(migrationsDir, dbURL string) error {
	m, err := migrate.New("file://"+migrationsDir, dbURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
