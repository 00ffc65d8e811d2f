package builder

import "github.com/evalgo/reactive-runtime/internal/classification"

// walkCells visits every *Cell reachable from an arbitrarily nested tree
// of maps/slices/Cells (the shape node Inputs/outputs are built from).
func walkCells(v interface{}, fn func(*Cell)) {
	switch t := v.(type) {
	case *Cell:
		if t != nil {
			fn(t)
		}
	case map[string]interface{}:
		for _, e := range t {
			walkCells(e, fn)
		}
	case []interface{}:
		for _, e := range t {
			walkCells(e, fn)
		}
	case []*Cell:
		for _, e := range t {
			walkCells(e, fn)
		}
	}
}

// propagateClassification raises out's schema to the least upper bound
// of every classification label reachable from input, per spec.md §4.5
// ("Classification propagation"): a node's result is at least as
// classified as every cell it reads.
func propagateClassification(frame *Frame, input interface{}, out *Cell) {
	rt := frame.Runtime()
	if rt == nil || rt.Lattice == nil {
		return
	}
	var labels []classification.Label
	walkCells(input, func(c *Cell) {
		labels = append(labels, classification.ExtractClassification(c.RootSchema())...)
	})
	if len(labels) == 0 {
		return
	}
	joined := rt.Lattice.JoinSchema(labels, out.Schema())
	if joined != nil {
		out.SetSchema(joined)
	}
}
