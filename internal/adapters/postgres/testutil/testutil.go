// Package testutil provides a migrated Postgres pool for adapter tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/pactsquad/pact-api/internal/adapters/postgres"
)

// OpenMigratedPool connects to DATABASE_URL, applies migrations and returns the pool.
// The test is skipped when DATABASE_URL is not set. Tests share the database, so they must use
// fresh ids rather than rely on empty tables.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping postgres adapter test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(pool); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return pool
}
