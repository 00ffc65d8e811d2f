//go:build integration

package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgresContainer starts a PostgreSQL container for testing,
// mirroring the teacher's db.setupPostgresContainer.
func setupPostgresContainer(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}
	return dsn, cleanup
}

// migrate creates the runtime_txn_audit table Trail assumes exists; a real
// deployment runs this as a migration, but there is no migration tool
// wired into this module, so the test creates it directly, matching
// audit.go's raw-SQL style (no gorm.AutoMigrate in this package).
func migrate(t *testing.T, trail *Trail) {
	t.Helper()
	_, err := trail.pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS runtime_txn_audit (
			txn_id     TEXT NOT NULL,
			spaces     TEXT[] NOT NULL,
			outcome    TEXT NOT NULL,
			error      TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		t.Fatalf("failed to create runtime_txn_audit table: %v", err)
	}
}

func TestTrail_Integration_RecordThenRecentByTxn(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()

	trail, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer trail.Close()
	migrate(t, trail)

	if err := trail.Record(context.Background(), "txn-1", []string{"space1", "space2"}, string(OutcomeCommitted), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := trail.RecentByTxn(context.Background(), "txn-1")
	if err != nil {
		t.Fatalf("RecentByTxn failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Outcome != OutcomeCommitted {
		t.Fatalf("expected outcome %q, got %q", OutcomeCommitted, entries[0].Outcome)
	}
	if entries[0].ErrMessage != "" {
		t.Fatalf("expected no error message, got %q", entries[0].ErrMessage)
	}
}

func TestTrail_Integration_RecordFailureCapturesErrMessage(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()

	trail, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer trail.Close()
	migrate(t, trail)

	txnErr := fmt.Errorf("read invariant violated")
	if err := trail.Record(context.Background(), "txn-2", []string{"space1"}, string(OutcomeFailed), txnErr); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := trail.RecentByTxn(context.Background(), "txn-2")
	if err != nil {
		t.Fatalf("RecentByTxn failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ErrMessage != txnErr.Error() {
		t.Fatalf("expected error message %q, got %q", txnErr.Error(), entries[0].ErrMessage)
	}
}

func TestTrail_Integration_RecentByTxnOrdersMostRecentFirst(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()

	trail, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer trail.Close()
	migrate(t, trail)

	if err := trail.Record(context.Background(), "txn-3", []string{"space1"}, string(OutcomeAborted), nil); err != nil {
		t.Fatalf("first Record failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := trail.Record(context.Background(), "txn-3", []string{"space1"}, string(OutcomeCommitted), nil); err != nil {
		t.Fatalf("second Record failed: %v", err)
	}

	entries, err := trail.RecentByTxn(context.Background(), "txn-3")
	if err != nil {
		t.Fatalf("RecentByTxn failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Outcome != OutcomeCommitted {
		t.Fatalf("expected most recent entry first (committed), got %q", entries[0].Outcome)
	}
}
