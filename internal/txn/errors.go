package txn

import (
	"fmt"

	"github.com/evalgo/reactive-runtime/internal/jsonpath"
)

// Address is a full (space, id, type, path) pointer, as seen by a
// Transaction (chronicles below see only the id/type/path, since each one
// belongs to a single space).
type Address struct {
	Space string
	ID    string
	Type  string
	Path  jsonpath.Path
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%s/%s%s", a.Space, a.ID, a.Type, a.Path)
}

// CompleteError is returned by any operation attempted on a transaction
// that is no longer ready (already aborted or committed).
type CompleteError struct{}

func (e *CompleteError) Error() string { return "storage transaction already complete" }

// AbortedError is the terminal error of a transaction ended by Abort.
type AbortedError struct{ Reason string }

func (e *AbortedError) Error() string { return fmt.Sprintf("storage transaction aborted: %s", e.Reason) }

// InconsistentError reports that a read invariant captured during the
// transaction no longer matches the replica's state at commit time.
type InconsistentError struct{ Address Address }

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("storage transaction inconsistent at %s", e.Address)
}

// WriteIsolationError is returned under the legacy single-writer-space
// model when a transaction attempts to write into a second space.
type WriteIsolationError struct {
	Open      string
	Requested string
}

func (e *WriteIsolationError) Error() string {
	return fmt.Sprintf("write isolation violation: transaction already writes to space %q, cannot also write to %q", e.Open, e.Requested)
}
