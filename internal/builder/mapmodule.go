package builder

// MapFunc is the per-element construction callback for Map: given an
// opaque reference to one list element, it returns the output tree for
// that element.
type MapFunc func(elem *Cell) interface{}

// Map builds the built-in map() pseudo-module (spec.md §4.5: "map
// recipes", a pattern whose module carries `implementation: "map"` over
// a nested per-element recipe) and applies it to list within frame.
func Map(frame *Frame, list *Cell, elementSchema, resultElementSchema map[string]interface{}, fn MapFunc) *Cell {
	rt := frame.Runtime()
	elementRecipe, _, _ := buildRecipe(rt, "map", elementSchema, resultElementSchema, func(_ *Frame, elem, _ *Cell) interface{} {
		return fn(elem)
	})

	out := newRootCell(frame, nil, nil)
	module := Module{
		Type:           ModuleMap,
		Recipe:         elementRecipe,
		ArgumentSchema: elementSchema,
		ResultSchema:   resultElementSchema,
	}
	newNode(frame, module, list, out)
	propagateClassification(frame, list, out)
	return out
}
