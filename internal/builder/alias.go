package builder

import (
	"fmt"

	"github.com/evalgo/reactive-runtime/internal/jsonpath"
)

// Recipe is the JSON-serializable form of a constructed pattern: a
// self-contained description of an argument/result schema pair, a result
// shape (with every opaque reference rewritten to an $alias), and the
// ordered list of nodes that compute it (spec.md §4.5, "pattern/recipe
// serialization to JSON").
type Recipe struct {
	ArgumentSchema map[string]interface{} `json:"argumentSchema,omitempty"`
	ResultSchema   map[string]interface{} `json:"resultSchema,omitempty"`
	Result         interface{}            `json:"result"`
	Nodes          []SerializedNode       `json:"nodes"`
}

// SerializedModule is the JSON form of Module.
type SerializedModule struct {
	Type           ModuleType              `json:"type"`
	Source         *SourceLocation         `json:"source,omitempty"`
	Ref            string                  `json:"ref,omitempty"`
	Recipe         *Recipe                 `json:"recipe,omitempty"`
	ArgumentSchema map[string]interface{}  `json:"argumentSchema,omitempty"`
	ResultSchema   map[string]interface{}  `json:"resultSchema,omitempty"`
	Wrapper        string                  `json:"wrapper,omitempty"`
}

// SerializedNode is the JSON form of Node.
type SerializedNode struct {
	Module  SerializedModule `json:"module"`
	Inputs  interface{}      `json:"inputs"`
	Outputs interface{}      `json:"outputs"`
}

// Alias is the `$alias` grammar from spec.md §4.5/§9: an opaque
// reference serialized as a path off a canonical root, optionally
// carrying the schema attached to this exact projection and a `cell`
// marker recording how many enclosing frames the referenced cell's
// birth frame sits above the use site (a "shadow reference").
type Alias struct {
	Path       jsonpath.Path          `json:"path"`
	Schema     map[string]interface{} `json:"schema,omitempty"`
	RootSchema map[string]interface{} `json:"rootSchema,omitempty"`
	Cell       *ShadowCell            `json:"cell,omitempty"`
}

// ShadowCell tags a cross-frame reference with its frame depth.
type ShadowCell struct {
	Depth int `json:"depth"`
}

// canonicalizer assigns canonical root paths (spec.md §4.5: argument /
// resultRef / internal/<name>) and serializes trees of *Cell leaves into
// $alias objects.
type canonicalizer struct {
	roots map[*Cell]jsonpath.Path
	next  int
}

func newCanonicalizer() *canonicalizer {
	return &canonicalizer{roots: map[*Cell]jsonpath.Path{}}
}

func (cz *canonicalizer) assign(root *Cell, path jsonpath.Path) {
	if _, ok := cz.roots[root]; ok {
		return
	}
	cz.roots[root] = path
}

func (cz *canonicalizer) canonicalPathFor(root *Cell) jsonpath.Path {
	if p, ok := cz.roots[root]; ok {
		return p
	}
	name := root.Name()
	if name == "" {
		name = synthName(cz.next)
		cz.next++
	}
	p := jsonpath.Path{"internal", name}
	cz.roots[root] = p
	return p
}

func synthName(n int) string {
	return fmt.Sprintf("node%d", n)
}

// frameDepth counts the number of frame hops from use upward to target,
// or -1 if target is not an ancestor of use.
func frameDepth(use, target *Frame) int {
	depth := 0
	for f := use; f != nil; f = f.Parent() {
		if f == target {
			return depth
		}
		depth++
	}
	return -1
}

// serialize walks v (a tree of *Cell / map[string]interface{} /
// []interface{} / literals) from the perspective of useFrame, replacing
// every *Cell with its $alias form. A Cell whose birth frame is not an
// ancestor of useFrame (frameDepth < 0) is a closure capture reaching
// construction time rather than a legal shadow reference, and is
// reported as ClosureCaptureError instead of being serialized.
func (cz *canonicalizer) serialize(v interface{}, useFrame *Frame) (interface{}, error) {
	switch t := v.(type) {
	case *Cell:
		rootPath := cz.canonicalPathFor(t.Root())
		full := append(append(jsonpath.Path{}, rootPath...), t.Path()...)
		a := Alias{Path: full, Schema: t.Schema(), RootSchema: t.RootSchema()}
		depth := frameDepth(useFrame, t.BornFrame())
		if depth < 0 {
			return nil, &ClosureCaptureError{CellName: t.debugName()}
		}
		if depth > 0 {
			a.Cell = &ShadowCell{Depth: depth}
		}
		return map[string]interface{}{"$alias": a}, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			se, err := cz.serialize(e, useFrame)
			if err != nil {
				return nil, err
			}
			out[k] = se
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			se, err := cz.serialize(e, useFrame)
			if err != nil {
				return nil, err
			}
			out[i] = se
		}
		return out, nil
	case []*Cell:
		out := make([]interface{}, len(t))
		for i, e := range t {
			se, err := cz.serialize(e, useFrame)
			if err != nil {
				return nil, err
			}
			out[i] = se
		}
		return out, nil
	default:
		return v, nil
	}
}
