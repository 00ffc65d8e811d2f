//go:build integration

package replica

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupCouchDBContainer starts a CouchDB container for testing, mirroring
// the teacher's containers/testing.SetupCouchDB: single-node mode, HTTP
// readiness on /_up, connection URL with embedded admin credentials.
func setupCouchDBContainer(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "couchdb:3",
		ExposedPorts: []string{"5984/tcp"},
		Env: map[string]string{
			"COUCHDB_USER":     "admin",
			"COUCHDB_PASSWORD": "admin",
		},
		WaitingFor: wait.ForHTTP("/_up").
			WithPort("5984/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start CouchDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5984")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}

	url := fmt.Sprintf("http://admin:admin@%s:%s", host, port.Port())
	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate CouchDB container: %v", err)
		}
	}
	return url, cleanup
}

func TestCouchReplica_Integration_OpenCreatesDatabase(t *testing.T) {
	url, cleanup := setupCouchDBContainer(t)
	defer cleanup()

	r, err := OpenCouchReplica(context.Background(), url, "runtime-test")
	if err != nil {
		t.Fatalf("OpenCouchReplica failed: %v", err)
	}
	defer r.Close()

	if _, ok, err := r.Get(context.Background(), EntityKey{ID: "missing", Type: "application/json"}); err != nil || ok {
		t.Fatalf("expected no fact for unseeded key, got ok=%v err=%v", ok, err)
	}
}

func TestCouchReplica_Integration_CommitThenGet(t *testing.T) {
	url, cleanup := setupCouchDBContainer(t)
	defer cleanup()

	r, err := OpenCouchReplica(context.Background(), url, "runtime-test-commit")
	if err != nil {
		t.Fatalf("OpenCouchReplica failed: %v", err)
	}
	defer r.Close()

	key := EntityKey{ID: "doc-1", Type: "application/json"}
	result, err := r.Commit(context.Background(), []Change{
		{Key: key, Value: map[string]interface{}{"a": float64(1)}},
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if result.Revs[key] == "" {
		t.Fatalf("expected a non-empty committed revision")
	}

	fact, ok, err := r.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected the committed fact to be found")
	}
	if fact.Rev != result.Revs[key] {
		t.Fatalf("expected fact.Rev %q to match committed rev %q", fact.Rev, result.Revs[key])
	}
}

func TestCouchReplica_Integration_CommitRejectsStaleRev(t *testing.T) {
	url, cleanup := setupCouchDBContainer(t)
	defer cleanup()

	r, err := OpenCouchReplica(context.Background(), url, "runtime-test-conflict")
	if err != nil {
		t.Fatalf("OpenCouchReplica failed: %v", err)
	}
	defer r.Close()

	key := EntityKey{ID: "doc-conflict", Type: "application/json"}
	if _, err := r.Commit(context.Background(), []Change{
		{Key: key, Value: map[string]interface{}{"v": float64(1)}},
	}); err != nil {
		t.Fatalf("seed commit failed: %v", err)
	}

	_, err = r.Commit(context.Background(), []Change{
		{Key: key, Value: map[string]interface{}{"v": float64(2)}, ExpectedRev: "1-deadbeef"},
	})
	if err == nil {
		t.Fatalf("expected a stale ExpectedRev to be rejected")
	}
	if _, ok := err.(*ConflictError); !ok {
		t.Fatalf("expected *ConflictError, got %T: %v", err, err)
	}
}
