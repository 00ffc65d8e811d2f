package builder

import (
	"context"
	"path/filepath"
	"testing"
)

func TestGraphStorePersistsAndQueriesDependencies(t *testing.T) {
	store, err := OpenGraphStore(filepath.Join(t.TempDir(), "recipes.bolt"))
	if err != nil {
		t.Fatalf("open graph store: %v", err)
	}
	defer store.Close()

	rt := NewRuntime()
	pf := Pattern(rt, nil, nil, func(inputs *Cell, self *Cell) interface{} {
		doubled := Derive(inputs.BornFrame(), inputs.Key("value"), func(v interface{}) interface{} {
			n, _ := v.(float64)
			return n * 2
		})
		tripled := Derive(inputs.BornFrame(), doubled, func(v interface{}) interface{} {
			n, _ := v.(float64)
			return n * 3
		})
		return map[string]interface{}{"tripled": tripled}
	})

	if err := pf.Persist(store, "scale"); err != nil {
		t.Fatalf("persist recipe: %v", err)
	}

	// The result is serialized before the nodes, so tripled is named
	// node0 and doubled node1; paths are stored in Path.String form.
	deps, err := store.Dependencies(context.Background(), "scale", "internal.node0")
	if err != nil {
		t.Fatalf("query dependencies: %v", err)
	}
	if len(deps) != 1 || deps[0] != "internal.node1" {
		t.Fatalf("expected node0 (tripled) to depend on node1 (doubled), got %v", deps)
	}
}
