package invariant

import "github.com/evalgo/reactive-runtime/internal/jsonpath"

// History is the read-invariant map (spec.md §4.2): what a transaction has
// observed. Conflicting claims against recorded observations fail with
// InconsistentError; redundant observations are silently accepted.
type History struct {
	*Map
}

// NewHistory returns an empty History map.
func NewHistory() *History {
	return &History{Map: newMap()}
}

// Claim records a read attestation. Returns the stored attestation (which
// may be an existing ancestor, unchanged, on a redundant claim) or an
// InconsistentError if the claim conflicts with existing history.
func (h *History) Claim(a Attestation) (Attestation, error) {
	f := h.forestFor(a.ID, a.Type)

	if i, ok := f.findAncestorOrSelf(a.Path); ok {
		ancestor := f.entries[i]
		rel := ancestor.Path.Suffix(a.Path)

		observed, _ := jsonpath.Get(ancestor.Value, rel)
		if len(rel) == 0 {
			observed = ancestor.Value
		}
		if jsonpath.DeepEqual(observed, a.Value) {
			return ancestor, nil // redundant, silently accepted
		}
		return Attestation{}, &InconsistentError{Claimed: a, Existing: ancestor}
	}

	descendants := f.findDescendants(a.Path)
	for _, i := range descendants {
		d := f.entries[i]
		rel := a.Path.Suffix(d.Path)
		expected, _ := jsonpath.Get(a.Value, rel)
		if !jsonpath.DeepEqual(expected, d.Value) {
			return Attestation{}, &InconsistentError{Claimed: a, Existing: d}
		}
	}

	f.removeIndices(descendants)
	f.entries = append(f.entries, a)
	return a, nil
}

// Get returns the deepest stored ancestor attestation covering address, or
// (Attestation{}, false) if none covers it.
func (h *History) Get(id, typ string, path jsonpath.Path) (Attestation, bool) {
	f := h.forestFor(id, typ)
	i, ok := f.findAncestorOrSelf(path)
	if !ok {
		return Attestation{}, false
	}
	return f.entries[i], true
}
