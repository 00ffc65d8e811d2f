// Package invariant implements the per-space Novelty (write) and History
// (read) invariant maps described in the storage transaction engine:
// forests of attestations keyed by (id, type, path), with parent/child
// overlap resolved by merge (Novelty) or conflict detection (History).
package invariant

import (
	"fmt"

	"github.com/evalgo/reactive-runtime/internal/jsonpath"
)

// Attestation is an observed or desired {address, value} pair, scoped to a
// single (id, type) entity; the space is implicit in which map holds it.
type Attestation struct {
	ID    string
	Type  string
	Path  jsonpath.Path
	Value interface{}
}

// InconsistentError reports a History claim that conflicts with an
// already-recorded observation. It carries both attestations for
// diagnostics, per spec.
type InconsistentError struct {
	Claimed  Attestation
	Existing Attestation
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("storage transaction inconsistent: claimed %s=%v conflicts with observed %s=%v",
		e.Claimed.Path, e.Claimed.Value, e.Existing.Path, e.Existing.Value)
}

// NotFoundError reports that a claim's parent value is not an object,
// so the claim's path cannot be addressed into it.
type NotFoundError struct {
	ID, Type string
	Path     jsonpath.Path
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s/%s%s is not an object", e.ID, e.Type, e.Path)
}

// entityKey identifies the outer map's bucket: one forest per (id, type).
type entityKey struct{ id, typ string }

// forest holds the stored attestations for a single entity, kept as a flat
// slice: the map invariant (no two entries where one path prefixes the
// other) keeps lookups linear-scan cheap for the small per-entity counts
// this runtime expects; a trie would be the production choice at larger
// fan-out (see spec.md's complexity note).
type forest struct {
	entries []Attestation
}

func (f *forest) findAncestorOrSelf(path jsonpath.Path) (int, bool) {
	for i, e := range f.entries {
		if e.Path.IsPrefixOf(path) {
			return i, true
		}
	}
	return -1, false
}

func (f *forest) findDescendants(path jsonpath.Path) []int {
	var idx []int
	for i, e := range f.entries {
		if path.IsPrefixOf(e.Path) && !e.Path.Equal(path) {
			idx = append(idx, i)
		}
	}
	return idx
}

func (f *forest) removeIndices(idx []int) {
	if len(idx) == 0 {
		return
	}
	remove := map[int]bool{}
	for _, i := range idx {
		remove[i] = true
	}
	out := f.entries[:0]
	for i, e := range f.entries {
		if !remove[i] {
			out = append(out, e)
		}
	}
	f.entries = out
}

// Map is the shared skeleton behind Novelty and History: a per-space map
// keyed by (id, type), each holding a forest of attestations.
type Map struct {
	forests map[entityKey]*forest
}

func newMap() *Map {
	return &Map{forests: map[entityKey]*forest{}}
}

func (m *Map) forestFor(id, typ string) *forest {
	k := entityKey{id, typ}
	f, ok := m.forests[k]
	if !ok {
		f = &forest{}
		m.forests[k] = f
	}
	return f
}

// All iterates every stored attestation exactly once, in unspecified order.
func (m *Map) All(fn func(Attestation)) {
	for _, f := range m.forests {
		for _, e := range f.entries {
			fn(e)
		}
	}
}

// Entries returns every stored attestation exactly once, in unspecified
// order. Prefer this over All when the caller needs to propagate an error
// per entry.
func (m *Map) Entries() []Attestation {
	var out []Attestation
	for _, f := range m.forests {
		out = append(out, f.entries...)
	}
	return out
}

// Len reports the total number of stored (non-merged-away) attestations,
// used by tests asserting forest minimality.
func (m *Map) Len() int {
	n := 0
	for _, f := range m.forests {
		n += len(f.entries)
	}
	return n
}
