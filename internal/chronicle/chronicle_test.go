package chronicle

import (
	"context"
	"testing"

	"github.com/evalgo/reactive-runtime/internal/jsonpath"
	"github.com/evalgo/reactive-runtime/internal/replica"
)

func TestWriteThenReadProjection(t *testing.T) {
	r := replica.NewMemoryReplica()
	c := New("space1", r)

	if err := c.Write("doc:1", "application/json", jsonpath.Path{}, map[string]interface{}{
		"a": map[string]interface{}{"b": float64(2)},
	}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	v, err := c.Read(context.Background(), "doc:1", "application/json", jsonpath.Path{"a", "b"})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != float64(2) {
		t.Fatalf("expected 2, got %v", v)
	}
}

func TestNoveltyMergeAcrossWrites(t *testing.T) {
	r := replica.NewMemoryReplica()
	c := New("space1", r)

	c.Write("doc:1", "application/json", jsonpath.Path{}, map[string]interface{}{
		"profile":  map[string]interface{}{"name": "Alice"},
		"settings": map[string]interface{}{"theme": "light"},
	})
	c.Write("doc:1", "application/json", jsonpath.Path{"profile", "name"}, "Bob")

	v, err := c.Read(context.Background(), "doc:1", "application/json", jsonpath.Path{})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	name, _ := jsonpath.Get(v, jsonpath.Path{"profile", "name"})
	if name != "Bob" {
		t.Fatalf("expected profile.name=Bob, got %v", name)
	}
	theme, _ := jsonpath.Get(v, jsonpath.Path{"settings", "theme"})
	if theme != "light" {
		t.Fatalf("expected settings.theme=light preserved, got %v", theme)
	}
}

func TestReadOnMissingIntermediateReturnsNotFound(t *testing.T) {
	r := replica.NewMemoryReplica()
	r.Seed(replica.EntityKey{ID: "d", Type: "t"}, "just-a-string")
	c := New("space1", r)

	_, err := c.Read(context.Background(), "d", "t", jsonpath.Path{"field"})
	if err == nil {
		t.Fatalf("expected NotFoundError reading through a non-object")
	}
}

func TestCloseFoldsNoveltyIntoChanges(t *testing.T) {
	r := replica.NewMemoryReplica()
	rev := r.Seed(replica.EntityKey{ID: "d", Type: "t"}, map[string]interface{}{"a": float64(1)})
	c := New("space1", r)

	c.Read(context.Background(), "d", "t", jsonpath.Path{"a"}) // establish history/rev awareness

	c.Write("d", "t", jsonpath.Path{"b"}, float64(2))
	changes, err := c.Close(context.Background())
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 folded change, got %d", len(changes))
	}
	if changes[0].ExpectedRev != rev {
		t.Fatalf("expected folded change conditioned on prior rev %s, got %s", rev, changes[0].ExpectedRev)
	}
	a, _ := jsonpath.Get(changes[0].Value, jsonpath.Path{"a"})
	b, _ := jsonpath.Get(changes[0].Value, jsonpath.Path{"b"})
	if a != float64(1) || b != float64(2) {
		t.Fatalf("expected folded value to merge base+write, got a=%v b=%v", a, b)
	}
}

func TestClosedChronicleRejectsOperations(t *testing.T) {
	r := replica.NewMemoryReplica()
	c := New("space1", r)
	c.Close(context.Background())

	if err := c.Write("d", "t", jsonpath.Path{}, 1); err == nil {
		t.Fatalf("expected write after close to fail")
	}
	if _, err := c.Read(context.Background(), "d", "t", jsonpath.Path{}); err == nil {
		t.Fatalf("expected read after close to fail")
	}
}
