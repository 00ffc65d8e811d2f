// Package chronicle implements the per-space transactional journal: it
// tracks reads (History) and writes (Novelty) against a single space's
// Replica, and folds accumulated writes into committable Facts.
package chronicle

import (
	"context"
	"fmt"

	"github.com/evalgo/reactive-runtime/internal/invariant"
	"github.com/evalgo/reactive-runtime/internal/jsonpath"
	"github.com/evalgo/reactive-runtime/internal/replica"
)

// ReadError is returned by Read when the addressed value cannot be
// reached, wrapping either invariant.InconsistentError or a NotFoundError.
type ReadError struct {
	Source error
}

func (e *ReadError) Error() string { return e.Source.Error() }
func (e *ReadError) Unwrap() error { return e.Source }

// NotFoundError reports that an intermediate on the read/write path is
// missing or not an object.
type NotFoundError struct {
	Source error
	ID     string
	Type   string
	Path   jsonpath.Path
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s/%s%s", e.ID, e.Type, e.Path)
}

// Chronicle is one space's transactional log: a History of observations, a
// Novelty of intended writes, and a read-only reference to that space's
// Replica. Closed chronicles reject further reads and writes.
type Chronicle struct {
	Space   string
	replica replica.Replica
	history *invariant.History
	novelty *invariant.Novelty
	closed  bool
}

// New opens a chronicle for space, backed by r.
func New(space string, r replica.Replica) *Chronicle {
	return &Chronicle{
		Space:   space,
		replica: r,
		history: invariant.NewHistory(),
		novelty: invariant.NewNovelty(),
	}
}

// Read returns the value at (id, typ, path): first checking this
// chronicle's own pending writes (so a transaction observes its own prior
// writes), then falling back to the replica, recording a History
// invariant either way.
func (c *Chronicle) Read(ctx context.Context, id, typ string, path jsonpath.Path) (interface{}, error) {
	if c.closed {
		return nil, fmt.Errorf("chronicle closed")
	}

	if v, ok := c.novelty.Project(id, typ, path); ok {
		if _, err := c.history.Claim(invariant.Attestation{ID: id, Type: typ, Path: path, Value: v}); err != nil {
			return nil, &ReadError{Source: err}
		}
		return v, nil
	}

	fact, found, err := c.replica.Get(ctx, replica.EntityKey{ID: id, Type: typ})
	if err != nil {
		return nil, &ReadError{Source: err}
	}

	var value interface{}
	if found {
		v, ok := replica.ValueAtPath(fact, path)
		if !ok {
			return nil, &ReadError{Source: &NotFoundError{ID: id, Type: typ, Path: path}}
		}
		value = v
	}

	if _, err := c.history.Claim(invariant.Attestation{ID: id, Type: typ, Path: path, Value: value}); err != nil {
		return nil, &ReadError{Source: err}
	}
	return value, nil
}

// Write records a desired value at (id, typ, path) in this chronicle's
// Novelty. value == nil deletes the addressed leaf (or retracts the root).
func (c *Chronicle) Write(id, typ string, path jsonpath.Path, value interface{}) error {
	if c.closed {
		return fmt.Errorf("chronicle closed")
	}
	_, err := c.novelty.Claim(invariant.Attestation{ID: id, Type: typ, Path: path, Value: value})
	return err
}

// Claims exposes this chronicle's recorded reads, for building the
// committed Transaction record.
func (c *Chronicle) Claims() []invariant.Attestation {
	var out []invariant.Attestation
	c.history.All(func(a invariant.Attestation) { out = append(out, a) })
	return out
}

// PendingChange is one entity's folded write: the full new value (after
// applying all of this chronicle's writes atop the replica's last-known
// state) and the Rev the write is conditioned on.
type PendingChange struct {
	ID          string
	Type        string
	Value       interface{}
	ExpectedRev string
}

// Close folds this chronicle's Novelty into per-entity changes, ready to
// pass to the owning space's Replica.Commit, and marks the chronicle
// closed. Folding applies every recorded write atop the replica's latest
// known value, so multiple sub-path writes to the same entity collapse
// into one change.
func (c *Chronicle) Close(ctx context.Context) ([]PendingChange, error) {
	if c.closed {
		return nil, fmt.Errorf("chronicle already closed")
	}
	c.closed = true

	var changes []PendingChange
	index := map[replica.EntityKey]int{}
	for _, a := range c.novelty.Entries() {
		key := replica.EntityKey{ID: a.ID, Type: a.Type}
		if i, seen := index[key]; seen {
			jsonpath.Set(&changes[i].Value, a.Path, a.Value)
			continue
		}
		fact, found, err := c.replica.Get(ctx, key)
		if err != nil {
			return nil, &ReadError{Source: err}
		}

		expectedRev := ""
		var base interface{}
		if found {
			expectedRev = fact.Rev
			base = fact.Value
		}

		newValue := base
		if len(a.Path) == 0 {
			newValue = a.Value
		} else {
			jsonpath.Set(&newValue, a.Path, a.Value)
		}

		index[key] = len(changes)
		changes = append(changes, PendingChange{
			ID:          a.ID,
			Type:        a.Type,
			Value:       newValue,
			ExpectedRev: expectedRev,
		})
	}
	return changes, nil
}

// IsClosed reports whether Close has already been called.
func (c *Chronicle) IsClosed() bool { return c.closed }
