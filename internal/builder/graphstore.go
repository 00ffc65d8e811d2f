package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/cayleygraph/cayley"
	"github.com/cayleygraph/cayley/graph"
	_ "github.com/cayleygraph/cayley/graph/kv/bolt"
	"github.com/cayleygraph/quad"
)

// recipe graph predicates.
var (
	predNodeType  = quad.IRI("runtime:nodeType")
	predDependsOn = quad.IRI("runtime:dependsOn")
	predOutputOf  = quad.IRI("runtime:outputPath")
)

// GraphStore persists a constructed recipe's node dependency graph to a
// Cayley/bbolt quad store, for offline introspection of pattern shape
// (which nodes feed which). This is optional: patterns build and
// serialize correctly with no GraphStore attached.
type GraphStore struct {
	store *cayley.Handle
}

// OpenGraphStore opens (initializing if necessary) a bbolt-backed quad
// store at path.
func OpenGraphStore(path string) (*GraphStore, error) {
	if err := graph.InitQuadStore("bolt", path, nil); err != nil && err != graph.ErrDatabaseExists {
		return nil, fmt.Errorf("builder: init graph store: %w", err)
	}
	store, err := cayley.NewGraph("bolt", path, nil)
	if err != nil {
		return nil, fmt.Errorf("builder: open graph store: %w", err)
	}
	return &GraphStore{store: store}, nil
}

// Close releases the underlying quad store.
func (g *GraphStore) Close() error {
	if g.store == nil {
		return nil
	}
	return g.store.Close()
}

func nodeIRI(recipeName string, n *Node) quad.IRI {
	return quad.IRI(fmt.Sprintf("node:%s:%p", recipeName, n))
}

// PersistRecipe writes one quad set per node in frame, recording its
// module type, canonical output path, and edges to every node whose
// output it reads, addressed under recipeName.
func (g *GraphStore) PersistRecipe(recipeName string, frame *Frame, cz *canonicalizer) error {
	nodes := frame.Nodes()
	byOutput := make(map[*Cell]*Node, len(nodes))
	for _, n := range nodes {
		byOutput[n.Output.Root()] = n
	}

	var quads []quad.Quad
	for _, n := range nodes {
		self := nodeIRI(recipeName, n)
		quads = append(quads,
			quad.Make(self, predNodeType, quad.String(n.Module.Type), nil),
			quad.Make(self, predOutputOf, quad.String(cz.canonicalPathFor(n.Output.Root()).String()), nil),
		)
		walkCells(n.Inputs, func(c *Cell) {
			if dep, ok := byOutput[c.Root()]; ok && dep != n {
				quads = append(quads, quad.Make(self, predDependsOn, nodeIRI(recipeName, dep), nil))
			}
		})
	}

	if err := g.store.AddQuadSet(quads); err != nil {
		return fmt.Errorf("builder: persist recipe %q: %w", recipeName, err)
	}
	return nil
}

// Dependencies returns the canonical output paths (in Path.String form)
// of every node that the node at outputPath directly depends on.
// recipeName is not used to narrow the query.
func (g *GraphStore) Dependencies(ctx context.Context, recipeName, outputPath string) ([]string, error) {
	// Find the node whose outputOf predicate matches outputPath, then
	// walk dependsOn edges one hop (direct dependencies); deeper queries
	// compose the same Out() call again from the caller.
	p := cayley.StartPath(g.store).
		Has(predOutputOf, quad.String(outputPath)).
		Out(predDependsOn).
		Out(predOutputOf)

	var paths []string
	err := p.Iterate(ctx).EachValue(nil, func(v quad.Value) {
		if s, ok := v.(quad.String); ok {
			paths = append(paths, strings.TrimSpace(string(s)))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("builder: query dependencies of %q: %w", outputPath, err)
	}
	return paths, nil
}
