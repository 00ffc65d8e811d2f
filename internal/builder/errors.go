package builder

import "fmt"

// ClosureCaptureError is the typed programmer error raised when code
// accesses an opaque reference from a frame that is neither the one that
// created it nor a descendant of it (spec.md §4.5, "Failure semantics").
type ClosureCaptureError struct {
	CellName string
}

func (e *ClosureCaptureError) Error() string {
	return fmt.Sprintf("reactive reference %q cannot be accessed via closure; use computed() or derive() to lift it into the current frame", e.CellName)
}

// NoRuntimeError is raised when a new opaque reference is requested but
// the current frame carries no Runtime.
type NoRuntimeError struct{}

func (e *NoRuntimeError) Error() string {
	return "cannot create a reactive reference: no runtime bound to the current frame"
}

// PrimitiveCoercionError is raised when caller code tries to coerce an
// opaque reference directly to a primitive value.
type PrimitiveCoercionError struct{ CellName string }

func (e *PrimitiveCoercionError) Error() string {
	return fmt.Sprintf("reactive reference %q cannot be coerced to a primitive; use derive() to compute a value from it", e.CellName)
}

// IterationBoundError is raised when a bounded Cell iteration is asked for
// more than the 50-element cap.
type IterationBoundError struct{ Index int }

func (e *IterationBoundError) Error() string {
	return fmt.Sprintf("reactive reference iteration bound exceeded at index %d (max 50)", e.Index)
}

// NameAssignmentError is raised when SetName is called on a non-root cell.
type NameAssignmentError struct{ Path string }

func (e *NameAssignmentError) Error() string {
	return fmt.Sprintf("cannot assign a name to non-root reference at path %s", e.Path)
}
