package jsonpath

import "testing"

func TestGetSetProjection(t *testing.T) {
	var doc interface{} = map[string]interface{}{}
	Set(&doc, Path{}, map[string]interface{}{"a": map[string]interface{}{"b": float64(2)}})

	v, ok := Get(doc, Path{"a", "b"})
	if !ok || v != float64(2) {
		t.Fatalf("expected a.b=2, got %v ok=%v", v, ok)
	}
}

func TestSetAutocreatesArrays(t *testing.T) {
	var doc interface{}
	Set(&doc, Path{"items", 2, "name"}, "three")

	v, ok := Get(doc, Path{"items", 2, "name"})
	if !ok || v != "three" {
		t.Fatalf("expected items[2].name=three, got %v ok=%v", v, ok)
	}
	arr, _ := Get(doc, Path{"items"})
	if len(arr.([]interface{})) != 3 {
		t.Fatalf("expected 3-element array, got %v", arr)
	}
}

func TestDeleteLeafTrimsTrailingUndefined(t *testing.T) {
	var doc interface{} = map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
	}
	Set(&doc, Path{"items", 2}, nil)

	arr, _ := Get(doc, Path{"items"})
	a := arr.([]interface{})
	if len(a) != 2 {
		t.Fatalf("expected trailing nil trimmed to length 2, got %v", a)
	}
}

func TestDeleteRootSetsUndefined(t *testing.T) {
	var doc interface{} = map[string]interface{}{"a": 1}
	changed := Set(&doc, Path{}, nil)
	if !changed || doc != nil {
		t.Fatalf("expected root retraction, got %v changed=%v", doc, changed)
	}
}

func TestDeleteOnNonExistentLeafIsNoop(t *testing.T) {
	var doc interface{} = map[string]interface{}{"a": 1}
	changed := Set(&doc, Path{"missing", "deeper"}, nil)
	if changed {
		t.Fatalf("expected no-op delete on non-existent leaf")
	}
}

func TestHasAtPath(t *testing.T) {
	doc := map[string]interface{}{"a": map[string]interface{}{"b": nil}}
	if !HasAtPath(doc, Path{"a", "b"}) {
		t.Fatalf("expected a.b to be defined (null)")
	}
	if HasAtPath(doc, Path{"a", "c"}) {
		t.Fatalf("expected a.c to be undefined")
	}
}

func TestTraverseIdentity(t *testing.T) {
	doc := map[string]interface{}{
		"a": []interface{}{float64(1), float64(2), map[string]interface{}{"x": "y"}},
	}
	out := Traverse(doc, func(v interface{}) (interface{}, bool) { return nil, false })
	if !DeepEqual(doc, out) {
		t.Fatalf("expected pointwise-equal traversal, got %v", out)
	}
}

func TestTraverseCyclesDoNotRecurseForever(t *testing.T) {
	m := map[string]interface{}{}
	m["self"] = m // cyclic reference
	// Terminating at all (rather than hanging until the test binary's
	// own timeout) is the assertion here.
	Traverse(m, func(v interface{}) (interface{}, bool) { return nil, false })
}

func TestPathIsPrefixOf(t *testing.T) {
	if !(Path{"a"}).IsPrefixOf(Path{"a", "b"}) {
		t.Fatal("expected a to be prefix of a.b")
	}
	if (Path{"a", "b"}).IsPrefixOf(Path{"a"}) {
		t.Fatal("expected a.b to not be a prefix of a")
	}
}
