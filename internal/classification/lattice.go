// Package classification provides a minimal bounded information-flow
// lattice: the default, pluggable implementation of the external
// classification lattice collaborator referenced opaquely by the builder
// (spec.md §4.5, "Classification propagation").
package classification

// Label is one point in the lattice. The zero value is not a known label,
// so Lub treats it like any unknown label (as Secret).
type Label string

const (
	Public       Label = "public"
	Confidential Label = "confidential"
	Secret       Label = "secret"
)

var rank = map[Label]int{
	Public:       0,
	Confidential: 1,
	Secret:       2,
}

// Lattice computes least-upper-bounds over sets of Labels and joins a
// schema's classification with a computed bound. Implementations MUST
// accept any set of labels; this one treats unknown labels as Secret
// (the conservative top), matching the "fail closed" posture an
// information-flow lattice should take on unrecognized input.
type Lattice interface {
	Lub(labels []Label) Label
	JoinSchema(labels []Label, schema map[string]interface{}) map[string]interface{}
}

// Default is the three-point Public < Confidential < Secret lattice.
type Default struct{}

// Lub returns the least upper bound of labels, or Public if labels is
// empty (the bottom element, representing "no classification observed").
func (Default) Lub(labels []Label) Label {
	best := Public
	for _, l := range labels {
		r, ok := rank[l]
		if !ok {
			return Secret
		}
		if r > rank[best] {
			best = l
		}
	}
	return best
}

// JoinSchema returns a copy of schema with its `ifc.classification` field
// raised to include Lub(labels), if schema already carries a
// classification, or set to [Lub(labels)] otherwise. A nil schema yields
// nil when Lub(labels) is Public, and otherwise a new schema carrying
// only that classification.
func (d Default) JoinSchema(labels []Label, schema map[string]interface{}) map[string]interface{} {
	lub := d.Lub(labels)
	if schema == nil {
		if lub == Public {
			return nil
		}
		return map[string]interface{}{"ifc": map[string]interface{}{"classification": []interface{}{string(lub)}}}
	}

	out := make(map[string]interface{}, len(schema))
	for k, v := range schema {
		out[k] = v
	}

	existing := ExtractClassification(schema)
	joined := d.Lub(append(append([]Label{}, existing...), lub))
	ifc, _ := out["ifc"].(map[string]interface{})
	ifcCopy := map[string]interface{}{}
	for k, v := range ifc {
		ifcCopy[k] = v
	}
	ifcCopy["classification"] = []interface{}{string(joined)}
	out["ifc"] = ifcCopy
	return out
}

// ExtractClassification reads the `ifc.classification` array off a schema,
// if present, treating a missing field as no classification (Public).
func ExtractClassification(schema map[string]interface{}) []Label {
	if schema == nil {
		return nil
	}
	ifc, ok := schema["ifc"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := ifc["classification"].([]interface{})
	if !ok {
		return nil
	}
	labels := make([]Label, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			labels = append(labels, Label(s))
		}
	}
	return labels
}
