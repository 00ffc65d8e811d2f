package builder

import (
	"reflect"
	"runtime"
)

// LiftFunc is the Go-native analogue of a lifted JavaScript function: pure
// computation over a caller-shaped input tree, producing a caller-shaped
// output tree. It must not capture Cells from an enclosing frame; doing
// so is a closure-capture programmer error surfaced when the resulting
// node is later applied.
type LiftFunc func(input interface{}) interface{}

// LiftFactory is a reusable computation, produced by Lift, that can be
// applied to inputs within any frame to register a new computed Cell.
type LiftFactory struct {
	argumentSchema map[string]interface{}
	resultSchema   map[string]interface{}
	fn             LiftFunc
	source         SourceLocation
}

func sourceLocationOf(fn interface{}) SourceLocation {
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return SourceLocation{}
	}
	file, line := f.FileLine(pc)
	return SourceLocation{File: file, Line: line, Function: f.Name()}
}

// Lift wraps fn as a reusable computed-cell factory, recording its
// argument/result schemas and its call site as a stand-in for the
// source text a JS lift would capture (spec.md §9 notes this is an
// intentional, Go-native substitution: the runtime has no source string
// for a compiled closure, only its file/line/qualified name).
func Lift(argumentSchema, resultSchema map[string]interface{}, fn LiftFunc) *LiftFactory {
	return &LiftFactory{
		argumentSchema: argumentSchema,
		resultSchema:   resultSchema,
		fn:             fn,
		source:         sourceLocationOf(fn),
	}
}

// Call applies the lifted computation to input within frame, registering
// a Node and returning its output Cell.
func (lf *LiftFactory) Call(frame *Frame, input interface{}) *Cell {
	out := newRootCell(frame, lf.resultSchema, nil)
	module := Module{
		Type:           ModuleJavaScript,
		Source:         lf.source,
		ArgumentSchema: lf.argumentSchema,
		ResultSchema:   lf.resultSchema,
	}
	newNode(frame, module, input, out)
	propagateClassification(frame, input, out)
	return out
}

// Derive is the two-argument sugar form: lift fn inline and immediately
// apply it to input, inferring no explicit schemas (spec.md §4.5
// describes derive()/lift() as differing only in whether schemas are
// given explicitly or inferred).
func Derive(frame *Frame, input interface{}, fn func(interface{}) interface{}) *Cell {
	return Lift(nil, nil, LiftFunc(fn)).Call(frame, input)
}

// Derive4 is the four-argument form of derive(), with explicit argument
// and result schemas.
func Derive4(frame *Frame, argumentSchema, resultSchema map[string]interface{}, input interface{}, fn func(interface{}) interface{}) *Cell {
	return Lift(argumentSchema, resultSchema, LiftFunc(fn)).Call(frame, input)
}

// Computed is the zero-argument lift form: a node with no declared
// inputs, whose output is recomputed whenever the runtime decides its
// dependencies (captured implicitly by fn reading external Cells, which
// is itself only legal when those Cells were born in frame) have
// changed.
func Computed(frame *Frame, resultSchema map[string]interface{}, fn func() interface{}) *Cell {
	wrapped := func(interface{}) interface{} { return fn() }
	lf := &LiftFactory{resultSchema: resultSchema, fn: wrapped, source: sourceLocationOf(fn)}
	return lf.Call(frame, nil)
}
