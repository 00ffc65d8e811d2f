package replica

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryReplica is an in-process Replica backed by a mutex-guarded map. It
// is the default backend for unit tests and the S1-S6 scenarios in
// spec.md §8.
type MemoryReplica struct {
	mu    sync.Mutex
	facts map[EntityKey]Fact
}

// NewMemoryReplica returns an empty in-memory replica.
func NewMemoryReplica() *MemoryReplica {
	return &MemoryReplica{facts: map[EntityKey]Fact{}}
}

func (r *MemoryReplica) Get(ctx context.Context, key EntityKey) (Fact, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.facts[key]
	return f, ok, nil
}

func (r *MemoryReplica) Commit(ctx context.Context, changes []Change) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range changes {
		current, exists := r.facts[c.Key]
		currentRev := ""
		if exists {
			currentRev = current.Rev
		}
		if c.ExpectedRev != currentRev {
			return Result{}, &ConflictError{Key: c.Key}
		}
	}

	revs := make(map[EntityKey]string, len(changes))
	for _, c := range changes {
		newRev := uuid.NewString()
		r.facts[c.Key] = Fact{Key: c.Key, Value: c.Value, Rev: newRev}
		revs[c.Key] = newRev
	}
	return Result{Revs: revs}, nil
}

func (r *MemoryReplica) Close() error { return nil }

// Seed directly installs a fact, bypassing Commit's conflict check —
// used by tests to set up initial replica state the way an earlier,
// already-committed transaction would have.
func (r *MemoryReplica) Seed(key EntityKey, value interface{}) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rev := uuid.NewString()
	r.facts[key] = Fact{Key: key, Value: value, Rev: rev}
	return rev
}
