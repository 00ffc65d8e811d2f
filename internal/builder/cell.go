package builder

import (
	"fmt"
	"sync"

	"github.com/evalgo/reactive-runtime/internal/jsonpath"
)

// maxIterate is the bound on Cell iteration (tuple destructuring), per
// spec.md §4.5.
const maxIterate = 50

// ExternalLink marks a Cell as a proxy for a preexisting, storage-backed
// cell rather than one freshly allocated during this pattern's
// construction (spec.md §4.5: "created without a link" vs. "backed by a
// storage-transaction-managed cell").
type ExternalLink struct {
	Space string
	ID    string
	Type  string
}

// Cell is an opaque reference into the value graph under construction: a
// proxy identified by (root, path), never a value itself. Per spec.md §9
// ("Design Notes"), this is the arena-allocated-node design: a Cell holds
// an identity and a path, and defers to Runtime/Frame bookkeeping rather
// than exposing language-level attribute access.
type Cell struct {
	id uint64

	frame *Frame // frame this Cell was born in
	root  *Cell  // self, if this Cell is itself a root
	path  jsonpath.Path

	external *ExternalLink
	stream   bool

	mu           sync.Mutex
	name         string // only meaningful when root == c (this cell is root)
	schema       map[string]interface{}
	defaultValue interface{}
	nodes        []*Node
}

// newRootCell allocates a fresh root opaque reference, born in frame.
// Requesting a reference from a frame with no bound Runtime is a
// programmer error (NoRuntimeError): every frame that outlives its
// PushFromCause/Push call carries the Runtime that created it.
func newRootCell(frame *Frame, schema map[string]interface{}, defaultValue interface{}) *Cell {
	rt := frame.Runtime()
	if rt == nil {
		panic(&NoRuntimeError{})
	}
	c := &Cell{
		frame:        frame,
		path:         jsonpath.Path{},
		schema:       schema,
		defaultValue: defaultValue,
		id:           rt.nextCellID(),
	}
	c.root = c
	frame.addCell(c)
	return c
}

// IsRoot reports whether c is its own root (a freshly allocated
// reference rather than a child projection of one).
func (c *Cell) IsRoot() bool { return c.root == c }

// Root returns the root Cell this reference is a projection of (itself,
// if it is already a root).
func (c *Cell) Root() *Cell { return c.root }

// Path returns the path of this reference relative to its root.
func (c *Cell) Path() jsonpath.Path { return c.path }

// BornFrame returns the frame this Cell was allocated in.
func (c *Cell) BornFrame() *Frame { return c.frame }

// checkFrame enforces the closure-capture rule: a Cell may only be
// touched from the frame it was born in, or from any descendant frame
// (opened via Push or PushFromCause while that Cell's frame was on the
// stack). Key (and through it Index and Elems) calls this first.
func (c *Cell) checkFrame(current *Frame) error {
	for f := current; f != nil; f = f.Parent() {
		if f == c.frame {
			return nil
		}
	}
	return &ClosureCaptureError{CellName: c.debugName()}
}

// debugName returns the root's assigned name, or a synthetic "cell#N"
// fallback when none was set.
func (c *Cell) debugName() string {
	name := c.root.name
	if name == "" {
		name = fmt.Sprintf("cell#%d", c.root.id)
	}
	return name
}

// String panics with PrimitiveCoercionError: an opaque reference has no
// primitive representation of its own. This is the Go-idiomatic
// equivalent of the JS Proxy valueOf/toString coercion trap described in
// spec.md §4.5 — attempting to format or otherwise coerce a Cell
// directly, instead of deriving a value from it, is a programmer error.
func (c *Cell) String() string {
	panic(&PrimitiveCoercionError{CellName: c.debugName()})
}

// Key returns a proxy for the child at key p (a string object key or an
// int array index), sharing this reference's root. Accessing c from a
// frame other than the one it was born in (or a descendant opened while
// that frame was active) is a closure capture and panics with
// ClosureCaptureError.
func (c *Cell) Key(p interface{}) *Cell {
	rt := c.frame.Runtime()
	if rt == nil {
		panic(&NoRuntimeError{})
	}
	if err := c.checkFrame(rt.Stack.Top()); err != nil {
		panic(err)
	}
	child := &Cell{
		frame: c.frame,
		root:  c.root,
		path:  append(append(jsonpath.Path{}, c.path...), p),
		id:    rt.nextCellID(),
	}
	c.frame.addCell(child)
	return child
}

// Index returns a proxy for the element at integer index i, enforcing
// the 50-element iteration bound. Exceeding it is a programmer error
// (IterationBoundError), not a silent truncation.
func (c *Cell) Index(i int) *Cell {
	if i < 0 || i >= maxIterate {
		panic(&IterationBoundError{Index: i})
	}
	return c.Key(i)
}

// Elems returns proxies for indices [0, n), n capped at maxIterate.
// Requesting more than maxIterate elements panics with
// IterationBoundError rather than silently truncating.
func (c *Cell) Elems(n int) []*Cell {
	if n > maxIterate {
		panic(&IterationBoundError{Index: n})
	}
	out := make([]*Cell, n)
	for i := 0; i < n; i++ {
		out[i] = c.Key(i)
	}
	return out
}

// SetName assigns a debug/export name to a root reference. Calling it on
// a non-root (projected) reference is a programmer error: names are a
// root-only concept, matching spec.md §4.5's "name assignment (only at
// root; nested writes fail)".
func (c *Cell) SetName(name string) error {
	if !c.IsRoot() {
		return &NameAssignmentError{Path: c.path.String()}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	return nil
}

// Name returns the root's assigned name, or "" if none was set.
func (c *Cell) Name() string {
	c.root.mu.Lock()
	defer c.root.mu.Unlock()
	return c.root.name
}

// SetSchema attaches a schema to this exact reference (root or
// projected). Per spec.md §4.5 this mutates only the nested proxy scope,
// never the root's schema, when called on a non-root Cell.
func (c *Cell) SetSchema(schema map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schema = schema
}

// Schema returns the schema attached directly to this reference (which
// may be nil even when the root carries one: RootSchema reaches that).
func (c *Cell) Schema() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schema
}

// RootSchema returns the schema attached to this reference's root.
func (c *Cell) RootSchema() map[string]interface{} {
	c.root.mu.Lock()
	defer c.root.mu.Unlock()
	return c.root.schema
}

// MarkStream flags this reference as an event stream (used by Handler
// bindings) rather than a plain derived cell.
func (c *Cell) MarkStream() { c.stream = true }

// IsStream reports whether this reference was created as an event
// stream.
func (c *Cell) IsStream() bool { return c.stream }

// External returns the preexisting-cell link this reference proxies, or
// nil if it was freshly allocated during construction.
func (c *Cell) External() *ExternalLink { return c.external }

// BindExternal attaches a storage-transaction-managed link to a root
// reference retroactively (used when lifting an existing transaction
// address into the builder as an opaque reference).
func (c *Cell) BindExternal(link *ExternalLink) {
	c.root.mu.Lock()
	defer c.root.mu.Unlock()
	c.root.external = link
}

// addNode registers n as a node that participates in (reads or writes)
// this reference.
func (c *Cell) addNode(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = append(c.nodes, n)
}

// Nodes returns the nodes registered against this exact reference.
func (c *Cell) Nodes() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Node(nil), c.nodes...)
}

// CellExport is the flattened, serialization-ready view of a Cell
// returned by Export.
type CellExport struct {
	ID           uint64
	Path         jsonpath.Path
	Name         string
	Schema       map[string]interface{}
	RootSchema   map[string]interface{}
	DefaultValue interface{}
	External     *ExternalLink
	Stream       bool
	Nodes        []*Node
}

// Export flattens this reference into its serialization-ready form.
func (c *Cell) Export() CellExport {
	return CellExport{
		ID:           c.id,
		Path:         c.path,
		Name:         c.Name(),
		Schema:       c.Schema(),
		RootSchema:   c.RootSchema(),
		DefaultValue: c.root.defaultValue,
		External:     c.root.external,
		Stream:       c.stream,
		Nodes:        c.Nodes(),
	}
}
