package builder

import "github.com/evalgo/reactive-runtime/internal/jsonpath"

// PatternFunc is user construction code: given the pattern's argument
// reference and a reference to its own (eventual) result, it returns an
// output tree built from node factory calls. Spec.md §4.5 describes the
// result reference as reachable through the inputs object itself, via a
// reserved marker key; exposing it here as an explicit second parameter
// is the Go-idiomatic equivalent (named directly rather than smuggled
// through a duck-typed property).
type PatternFunc func(inputs *Cell, self *Cell) interface{}

// PatternFactory is a constructed, reusable pattern: its serialized
// Recipe plus the ability to instantiate it as a node (ModuleRecipe)
// within another pattern's construction.
type PatternFactory struct {
	recipe *Recipe
	frame  *Frame
	cz     *canonicalizer
}

// buildRecipe runs the construction callback in a fresh frame and
// serializes the result, shared by Pattern and Map (which differs only
// in omitting the self reference).
func buildRecipe(rt *Runtime, cause string, argumentSchema, resultSchema map[string]interface{}, run func(frame *Frame, argument, self *Cell) interface{}) (*Recipe, *Frame, *canonicalizer) {
	frame := rt.Stack.PushFromCause(rt, cause)
	argument := newRootCell(frame, argumentSchema, nil)
	self := newRootCell(frame, resultSchema, nil)

	outputs := run(frame, argument, self)

	rt.Stack.Pop(frame)

	if err := ValidateAcyclic(frame); err != nil {
		panic(err)
	}

	cz := newCanonicalizer()
	cz.assign(argument, jsonpath.Path{"argument"})
	cz.assign(self, jsonpath.Path{"resultRef"})

	serializedResult, err := cz.serialize(outputs, frame)
	if err != nil {
		panic(err)
	}

	nodes := frame.Nodes()
	serializedNodes := make([]SerializedNode, 0, len(nodes))
	for _, n := range nodes {
		sm := SerializedModule{
			Type:           n.Module.Type,
			Ref:            n.Module.Ref,
			Recipe:         n.Module.Recipe,
			ArgumentSchema: n.Module.ArgumentSchema,
			ResultSchema:   n.Module.ResultSchema,
			Wrapper:        n.Module.Wrapper,
		}
		if n.Module.Type == ModuleJavaScript {
			src := n.Module.Source
			sm.Source = &src
		}
		outputPath := cz.canonicalPathFor(n.Output.Root())
		serializedInputs, err := cz.serialize(n.Inputs, frame)
		if err != nil {
			panic(err)
		}
		serializedNodes = append(serializedNodes, SerializedNode{
			Module:  sm,
			Inputs:  serializedInputs,
			Outputs: map[string]interface{}{"$alias": Alias{Path: outputPath}},
		})
	}

	return &Recipe{
		ArgumentSchema: argumentSchema,
		ResultSchema:   resultSchema,
		Result:         serializedResult,
		Nodes:          serializedNodes,
	}, frame, cz
}

// Pattern constructs a reusable recipe: fn runs once, immediately, with a
// fresh argument reference and a reference to the pattern's own result,
// and its returned output tree is serialized to the $alias grammar.
func Pattern(rt *Runtime, argumentSchema, resultSchema map[string]interface{}, fn PatternFunc) *PatternFactory {
	recipe, frame, cz := buildRecipe(rt, "pattern", argumentSchema, resultSchema, func(_ *Frame, argument, self *Cell) interface{} {
		return fn(argument, self)
	})
	return &PatternFactory{recipe: recipe, frame: frame, cz: cz}
}

// Recipe returns pf's serialized form.
func (pf *PatternFactory) Recipe() *Recipe { return pf.recipe }

// Persist writes pf's node dependency graph to store under name, for
// later introspection via store.Dependencies.
func (pf *PatternFactory) Persist(store *GraphStore, name string) error {
	return store.PersistRecipe(name, pf.frame, pf.cz)
}

// Call instantiates pf as a nested node within frame, wiring inputs as
// the node's argument tree and returning its output reference.
func (pf *PatternFactory) Call(frame *Frame, inputs interface{}) *Cell {
	out := newRootCell(frame, pf.recipe.ResultSchema, nil)
	module := Module{
		Type:           ModuleRecipe,
		Recipe:         pf.recipe,
		ArgumentSchema: pf.recipe.ArgumentSchema,
		ResultSchema:   pf.recipe.ResultSchema,
	}
	newNode(frame, module, inputs, out)
	propagateClassification(frame, inputs, out)
	return out
}

// Registry holds named, reusable recipes, resolved by Ref at
// construction time into ModuleRef nodes rather than inlined recipes
// (spec.md §4.5's "ref" module kind).
type Registry struct {
	byName map[string]*PatternFactory
}

// NewRegistry constructs an empty recipe registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]*PatternFactory{}}
}

// Register names pf for later lookup via Ref.
func (r *Registry) Register(name string, pf *PatternFactory) {
	r.byName[name] = pf
}

// Ref instantiates the named recipe as a ModuleRef node within frame.
func (r *Registry) Ref(frame *Frame, name string, inputs interface{}) *Cell {
	pf, ok := r.byName[name]
	var resultSchema map[string]interface{}
	if ok {
		resultSchema = pf.recipe.ResultSchema
	}
	out := newRootCell(frame, resultSchema, nil)
	newNode(frame, Module{Type: ModuleRef, Ref: name, ResultSchema: resultSchema}, inputs, out)
	propagateClassification(frame, inputs, out)
	return out
}
