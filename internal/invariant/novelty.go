package invariant

import "github.com/evalgo/reactive-runtime/internal/jsonpath"

// Novelty is the write-invariant map (spec.md §4.2): what a transaction
// intends the store to become. Claims against an existing ancestor are
// merged into it; claims that shadow existing descendants evict them.
type Novelty struct {
	*Map
}

// NewNovelty returns an empty Novelty map.
func NewNovelty() *Novelty {
	return &Novelty{Map: newMap()}
}

// Claim records a write attestation, merging it into an ancestor entry or
// storing it fresh after evicting now-shadowed descendants.
func (n *Novelty) Claim(a Attestation) (Attestation, error) {
	f := n.forestFor(a.ID, a.Type)

	if i, ok := f.findAncestorOrSelf(a.Path); ok {
		ancestor := f.entries[i]
		rel := ancestor.Path.Suffix(a.Path)

		if len(rel) > 0 {
			// a extends an existing ancestor: verify the ancestor's own
			// value is an object, then merge at rel (missing intermediates
			// below it are autocreated).
			if _, isObj := ancestor.Value.(map[string]interface{}); !isObj {
				return Attestation{}, &NotFoundError{ID: a.ID, Type: a.Type, Path: a.Path}
			}
			merged := copyValue(ancestor.Value)
			jsonpath.Set(&merged, rel, a.Value)
			ancestor.Value = merged
			f.entries[i] = ancestor
			return ancestor, nil
		}

		// a overwrites the ancestor exactly: replace value, evict children.
		ancestor.Value = a.Value
		f.entries[i] = ancestor
		f.removeIndices(f.findDescendants(a.Path))
		return ancestor, nil
	}

	// No ancestor: evict shadowed descendants, store fresh.
	f.removeIndices(f.findDescendants(a.Path))
	f.entries = append(f.entries, a)
	return a, nil
}

// Get returns the deepest stored ancestor attestation covering address
// (including an exact match), or (Attestation{}, false) if none covers it.
func (n *Novelty) Get(id, typ string, path jsonpath.Path) (Attestation, bool) {
	f := n.forestFor(id, typ)
	i, ok := f.findAncestorOrSelf(path)
	if !ok {
		return Attestation{}, false
	}
	return f.entries[i], true
}

// Project returns the value an ancestor entry implies at address path,
// i.e. Get(ancestor.Value, relative-path). Used by chronicle reads that
// must see the transaction's own prior writes.
func (n *Novelty) Project(id, typ string, path jsonpath.Path) (interface{}, bool) {
	a, ok := n.Get(id, typ, path)
	if !ok {
		return nil, false
	}
	rel := a.Path.Suffix(path)
	if len(rel) == 0 {
		return a.Value, true
	}
	return jsonpath.Get(a.Value, rel)
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	default:
		return v
	}
}
