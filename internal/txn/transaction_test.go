package txn

import (
	"context"
	"testing"

	"github.com/evalgo/reactive-runtime/internal/jsonpath"
	"github.com/evalgo/reactive-runtime/internal/replica"
	"github.com/evalgo/reactive-runtime/internal/space"
)

func newTestManager(t *testing.T) (*space.Manager, map[string]*replica.MemoryReplica) {
	t.Helper()
	replicas := map[string]*replica.MemoryReplica{}
	mgr := space.New(func(s string) (replica.Replica, error) {
		r := replica.NewMemoryReplica()
		replicas[s] = r
		return r, nil
	}, nil)
	return mgr, replicas
}

func TestWriteThenCommitThenRead(t *testing.T) {
	mgr, _ := newTestManager(t)
	tx := New(mgr, nil)

	err := tx.Write(context.Background(), Address{Space: "space1", ID: "doc:1", Type: "application/json", Path: jsonpath.Path{}},
		map[string]interface{}{"a": map[string]interface{}{"b": float64(2)}})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	tx2 := New(mgr, nil)
	v, err := tx2.Read(context.Background(), Address{Space: "space1", ID: "doc:1", Type: "application/json", Path: jsonpath.Path{"a", "b"}}, ReadOptions{})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != float64(2) {
		t.Fatalf("expected 2, got %v", v)
	}
}

func TestReadInvariantRejectsConcurrentChange(t *testing.T) {
	mgr, replicas := newTestManager(t)

	seed := New(mgr, nil)
	seed.Write(context.Background(), Address{Space: "space1", ID: "user", Type: "application/json"},
		map[string]interface{}{"name": "Alice", "version": float64(1)})
	if err := seed.Commit(context.Background()); err != nil {
		t.Fatalf("seed commit failed: %v", err)
	}

	tx := New(mgr, nil)
	v, err := tx.Read(context.Background(), Address{Space: "space1", ID: "user", Type: "application/json"}, ReadOptions{})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if name, _ := jsonpath.Get(v, jsonpath.Path{"name"}); name != "Alice" {
		t.Fatalf("expected Alice, got %v", name)
	}

	// Concurrent commit changes the same entity.
	r := replicas["space1"]
	r.Commit(context.Background(), []replica.Change{{
		Key:         replica.EntityKey{ID: "user", Type: "application/json"},
		Value:       map[string]interface{}{"name": "Modified", "version": float64(2)},
		ExpectedRev: mustRev(t, r, "user"),
	}})

	err = tx.Commit(context.Background())
	if err == nil {
		t.Fatalf("expected inconsistency error on commit")
	}
	if _, ok := err.(*InconsistentError); !ok {
		t.Fatalf("expected *InconsistentError, got %T: %v", err, err)
	}
}

func mustRev(t *testing.T, r *replica.MemoryReplica, id string) string {
	t.Helper()
	f, ok, err := r.Get(context.Background(), replica.EntityKey{ID: id, Type: "application/json"})
	if err != nil || !ok {
		t.Fatalf("expected existing fact for %s: ok=%v err=%v", id, ok, err)
	}
	return f.Rev
}

func TestAbortThenAbortReturnsFirstReason(t *testing.T) {
	mgr, _ := newTestManager(t)
	tx := New(mgr, nil)

	err1 := tx.Abort("first")
	err2 := tx.Abort("second")
	if err1.Error() != err2.Error() {
		t.Fatalf("expected idempotent abort, got %v then %v", err1, err2)
	}
}

func TestCommitThenCommitIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t)
	tx := New(mgr, nil)
	tx.Write(context.Background(), Address{Space: "s", ID: "d", Type: "t"}, 1)

	err1 := tx.Commit(context.Background())
	err2 := tx.Commit(context.Background())
	if err1 != err2 {
		t.Fatalf("expected identical result on repeated commit, got %v then %v", err1, err2)
	}
}

func TestOperationsAfterAbortFail(t *testing.T) {
	mgr, _ := newTestManager(t)
	tx := New(mgr, nil)
	tx.Abort("stop")

	if err := tx.Write(context.Background(), Address{Space: "s", ID: "d", Type: "t"}, 1); err == nil {
		t.Fatalf("expected write after abort to fail")
	}
	if _, err := tx.Read(context.Background(), Address{Space: "s", ID: "d", Type: "t"}, ReadOptions{}); err == nil {
		t.Fatalf("expected read after abort to fail")
	}
}

func TestWriteIsolationLegacyMode(t *testing.T) {
	mgr, _ := newTestManager(t)
	tx := New(mgr, nil, WithWriteIsolation())

	if err := tx.Write(context.Background(), Address{Space: "space1", ID: "d", Type: "t"}, 1); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	err := tx.Write(context.Background(), Address{Space: "space2", ID: "d", Type: "t"}, 1)
	if err == nil {
		t.Fatalf("expected write isolation violation")
	}
	if _, ok := err.(*WriteIsolationError); !ok {
		t.Fatalf("expected *WriteIsolationError, got %T", err)
	}
}

func TestParallelSpaceWritesAllowedByDefault(t *testing.T) {
	mgr, _ := newTestManager(t)
	tx := New(mgr, nil)

	if err := tx.Write(context.Background(), Address{Space: "space1", ID: "d", Type: "t"}, 1); err != nil {
		t.Fatalf("write to space1 failed: %v", err)
	}
	if err := tx.Write(context.Background(), Address{Space: "space2", ID: "d", Type: "t"}, 2); err != nil {
		t.Fatalf("write to space2 failed: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
}

type fakeRecorder struct {
	calls []string
}

func (f *fakeRecorder) Record(_ context.Context, txnID string, spaces []string, outcome string, _ error) error {
	f.calls = append(f.calls, outcome)
	return nil
}

func TestAuditRecorderObservesCommitOutcome(t *testing.T) {
	mgr, _ := newTestManager(t)
	rec := &fakeRecorder{}
	tx := New(mgr, nil, WithAudit(rec))

	tx.Write(context.Background(), Address{Space: "s", ID: "d", Type: "t"}, 1)
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "committed" {
		t.Fatalf("expected one 'committed' audit call, got %v", rec.calls)
	}
}

func TestAuditRecorderObservesAbortOutcome(t *testing.T) {
	mgr, _ := newTestManager(t)
	rec := &fakeRecorder{}
	tx := New(mgr, nil, WithAudit(rec))

	tx.Abort("cancelled by caller")
	if len(rec.calls) != 1 || rec.calls[0] != "aborted" {
		t.Fatalf("expected one 'aborted' audit call, got %v", rec.calls)
	}
}

func TestStatusReadyThenDoneAfterCommit(t *testing.T) {
	mgr, _ := newTestManager(t)
	tx := New(mgr, nil)
	if tx.Status().Status != StatusReady {
		t.Fatalf("expected ready status before commit")
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if tx.Status().Status != StatusDone {
		t.Fatalf("expected done status after commit")
	}
}
