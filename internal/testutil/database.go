package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dimitrije/tokenhub-api/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgImage    = "postgres:16-alpine"
	pgDatabase = "tokenhub_test"

	// Enough connections for the concurrency tests to queue on row locks
	// instead of on the pool.
	pgMaxConns = 32
)

// Tables in dependency order, children first.
var ledgerTables = []string{
	"refresh_tokens",
	"token_favorites",
	"supply_adjustments",
	"token_transactions",
	"token_permissions",
	"tokens",
	"users",
}

type TestDB struct {
	DB        *database.DB
	Container testcontainers.Container
}

// SetupTestDB starts a migrated PostgreSQL container for the test. Tests
// that call it should skip in -short mode; it skips by itself when no
// container runtime is reachable.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       pgDatabase,
			},
			// postgres logs readiness once for the init server and once for
			// the real one
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start %s: %v", pgImage, err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		t.Fatalf("failed to resolve postgres endpoint: %v", err)
	}
	dsn := fmt.Sprintf("postgres://test:test@%s/%s?sslmode=disable", endpoint, pgDatabase)

	db, err := database.New(ctx, dsn, pgMaxConns)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return &TestDB{DB: db, Container: container}
}

// CleanTables empties every ledger table in one statement.
func (tdb *TestDB) CleanTables(t *testing.T) {
	t.Helper()
	stmt := "TRUNCATE TABLE " + strings.Join(ledgerTables, ", ") + " CASCADE"
	if _, err := tdb.DB.Pool.Exec(context.Background(), stmt); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}
