// Package replica defines the Replica interface the storage transaction
// engine commits against, plus the in-memory, bbolt, and CouchDB-backed
// implementations used to exercise the core without a live network
// storage provider (which spec.md marks an external collaborator).
package replica

import (
	"context"
	"fmt"

	"github.com/evalgo/reactive-runtime/internal/jsonpath"
)

// EntityKey identifies a document within a single space: an opaque entity
// URI plus a media-type tag.
type EntityKey struct {
	ID   string
	Type string
}

// Fact is the current, or a committed, state of an entity: a JSON value
// plus a causal reference (Rev) to the fact it supersedes. An empty Rev on
// read means "no fact yet"; a Rev mismatch on commit means a concurrent
// writer won and the caller must retry or abort.
type Fact struct {
	Key   EntityKey
	Value interface{} // nil means retracted
	Rev   string
}

// Change is one entity's desired new state, to be committed atomically
// with its sibling changes. ExpectedRev is the Rev the caller last
// observed (empty if the caller never read this entity); a mismatch at
// commit time is a conflict.
type Change struct {
	Key         EntityKey
	Value       interface{}
	ExpectedRev string
}

// Result reports the committed Rev for each entity in a successful commit.
type Result struct {
	Revs map[EntityKey]string
}

// Replica is the per-space authoritative store. It is an external
// collaborator in the spec; the implementations in this package make the
// core exercisable in tests and local tooling.
type Replica interface {
	// Get returns the current Fact for key, or ok=false if none exists.
	Get(ctx context.Context, key EntityKey) (Fact, bool, error)

	// Commit applies changes. On any ExpectedRev mismatch it returns
	// ConflictError; MemoryReplica and BoltReplica then apply none of the
	// changes, while CouchReplica keeps the changes it put before the
	// mismatch.
	Commit(ctx context.Context, changes []Change) (Result, error)

	// Close releases any resources the replica holds.
	Close() error
}

// ConflictError reports a Rev mismatch detected by the replica itself at
// commit time (as distinct from a StorageTransactionInconsistent detected
// via History validation upstream).
type ConflictError struct {
	Key EntityKey
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict committing %s/%s: expected revision does not match current", e.Key.ID, e.Key.Type)
}

// ConnectionError wraps a transport-level failure talking to a replica
// backend.
type ConnectionError struct{ Err error }

func (e *ConnectionError) Error() string { return fmt.Sprintf("replica connection error: %v", e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthorizationError reports a replica-level permission failure.
type AuthorizationError struct{ Key EntityKey }

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized to access %s/%s", e.Key.ID, e.Key.Type)
}

// TransactionError wraps any other replica-reported commit failure.
type TransactionError struct{ Err error }

func (e *TransactionError) Error() string { return fmt.Sprintf("replica transaction error: %v", e.Err) }
func (e *TransactionError) Unwrap() error { return e.Err }

// ValueAtPath projects a Fact's value down to a sub-path, matching the
// jsonpath semantics callers use elsewhere. ok is false when any
// intermediate is missing.
func ValueAtPath(f Fact, path jsonpath.Path) (interface{}, bool) {
	if len(path) == 0 {
		return f.Value, true
	}
	return jsonpath.Get(f.Value, path)
}
