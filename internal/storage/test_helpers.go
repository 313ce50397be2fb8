package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/helper-ledger/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// integrationConfig points at the local dev database unless overridden
// through the usual POSTGRES_* variables.
func integrationConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           envOr("POSTGRES_HOST", "localhost"),
		Port:           envOr("POSTGRES_PORT", "5432"),
		Database:       envOr("POSTGRES_DB", "helper_ledger"),
		User:           envOr("POSTGRES_USER", "helper"),
		Password:       os.Getenv("POSTGRES_PASSWORD"),
		MaxConnections: 10,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// integrationDB connects to the dev Postgres and brings the schema up to
// date. Tests are skipped in short mode and when the database is not
// reachable, matching how the rest of the integration suite behaves.
func integrationDB(t *testing.T) *PostgresDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := integrationConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg, "../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// uniqueID keeps integration tests isolated from each other without
// truncating shared tables.
func uniqueID(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
