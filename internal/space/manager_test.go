package space

import (
	"context"
	"errors"
	"testing"

	"github.com/evalgo/reactive-runtime/internal/replica"
)

func TestManagerOpenMemoizesReplicaPerSpace(t *testing.T) {
	opens := 0
	mgr := New(func(s string) (replica.Replica, error) {
		opens++
		return replica.NewMemoryReplica(), nil
	}, nil)

	r1, err := mgr.Open("space1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	r2, err := mgr.Open("space1")
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if r1 != r2 {
		t.Fatalf("expected the same Replica instance to be memoized per space")
	}
	if opens != 1 {
		t.Fatalf("expected opener to run once, ran %d times", opens)
	}
}

func TestManagerOpenPropagatesOpenerError(t *testing.T) {
	wantErr := errors.New("boom")
	mgr := New(func(s string) (replica.Replica, error) {
		return nil, wantErr
	}, nil)

	_, err := mgr.Open("space1")
	if err == nil {
		t.Fatalf("expected an error from a failing opener")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped opener error, got %v", err)
	}
}

func TestManagerCloseAllClosesEveryOpenedReplica(t *testing.T) {
	mgr := New(func(s string) (replica.Replica, error) {
		return replica.NewMemoryReplica(), nil
	}, nil)

	if _, err := mgr.Open("space1"); err != nil {
		t.Fatalf("Open space1 failed: %v", err)
	}
	if _, err := mgr.Open("space2"); err != nil {
		t.Fatalf("Open space2 failed: %v", err)
	}
	if err := mgr.CloseAll(); err != nil {
		t.Fatalf("CloseAll failed: %v", err)
	}
}

type fakeNotifier struct {
	published []string
	err       error
}

func (f *fakeNotifier) Publish(ctx context.Context, space string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, space)
	return nil
}

func TestNotifyCommitIsNoOpWithoutNotifier(t *testing.T) {
	mgr := New(func(s string) (replica.Replica, error) { return replica.NewMemoryReplica(), nil }, nil)
	if err := mgr.NotifyCommit(context.Background(), "space1"); err != nil {
		t.Fatalf("expected NotifyCommit to be a no-op without a Notifier, got %v", err)
	}
}

func TestNotifyCommitPublishesThroughAttachedNotifier(t *testing.T) {
	mgr := New(func(s string) (replica.Replica, error) { return replica.NewMemoryReplica(), nil }, nil)
	fn := &fakeNotifier{}
	mgr.WithNotifier(fn)

	if err := mgr.NotifyCommit(context.Background(), "space1"); err != nil {
		t.Fatalf("NotifyCommit failed: %v", err)
	}
	if len(fn.published) != 1 || fn.published[0] != "space1" {
		t.Fatalf("expected space1 to be published, got %v", fn.published)
	}
}

func TestNotifyCommitPropagatesNotifierError(t *testing.T) {
	mgr := New(func(s string) (replica.Replica, error) { return replica.NewMemoryReplica(), nil }, nil)
	wantErr := errors.New("publish failed")
	mgr.WithNotifier(&fakeNotifier{err: wantErr})

	if err := mgr.NotifyCommit(context.Background(), "space1"); !errors.Is(err, wantErr) {
		t.Fatalf("expected notifier error to propagate, got %v", err)
	}
}
