// Package jsonpath provides path-addressed access into untyped JSON values.
//
// A path is an ordered sequence of keys, each either a string (object
// member) or an int (array index). Get/Set/Traverse walk a value the same
// way Schema.org-flavored runtime documents are walked elsewhere in this
// codebase (dot-path field lookups), generalized to typed path segments and
// guarded against reference cycles.
package jsonpath

import (
	"fmt"
)

// Key is one path segment: either a string (object member) or an int
// (array index).
type Key interface{}

// Path is an ordered sequence of Keys.
type Path []Key

// String renders a path for diagnostics, e.g. "a.b[2].c".
func (p Path) String() string {
	s := ""
	for i, k := range p {
		switch v := k.(type) {
		case string:
			if i > 0 {
				s += "."
			}
			s += v
		case int:
			s += fmt.Sprintf("[%d]", v)
		default:
			s += fmt.Sprintf("[?%v]", v)
		}
	}
	return s
}

// Equal reports whether two paths have identical keys in identical order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether p is a (non-strict) prefix of other.
func (p Path) IsPrefixOf(other Path) bool {
	if len(p) > len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Suffix returns other with p's prefix stripped. Panics if p is not a
// prefix of other; callers must check IsPrefixOf first.
func (p Path) Suffix(other Path) Path {
	if !p.IsPrefixOf(other) {
		panic("jsonpath: Suffix called on non-prefix")
	}
	return other[len(p):]
}

// Get returns the value at path within value, or (nil, false) if any
// intermediate is missing or value itself is undefined at path.
func Get(value interface{}, path Path) (interface{}, bool) {
	current := value
	for _, key := range path {
		next, ok := index(current, key)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// HasAtPath reports whether every intermediate on path exists and the leaf
// is defined (not nil-as-undefined). A leaf whose value is JSON null is
// "defined"; only a wholly absent key is not.
func HasAtPath(value interface{}, path Path) bool {
	_, ok := Get(value, path)
	return ok
}

func index(value interface{}, key Key) (interface{}, bool) {
	switch k := key.(type) {
	case string:
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[k]
		return v, ok
	case int:
		a, ok := value.([]interface{})
		if !ok || k < 0 || k >= len(a) {
			return nil, false
		}
		return a[k], true
	default:
		return nil, false
	}
}

// Set writes newValue at path within *value, autocreating intermediate
// objects (or arrays, when the next key is an int) as needed. newValue ==
// nil deletes the addressed leaf (or, at path == nil, clears the whole
// root to nil). Returns whether the tree actually changed.
func Set(value *interface{}, path Path, newValue interface{}) bool {
	if len(path) == 0 {
		changed := !DeepEqual(*value, newValue)
		*value = newValue
		return changed
	}

	if newValue == nil {
		return deleteAt(value, path)
	}

	root := ensureContainer(value, path[0])
	cur := root
	chain := []container{root}
	for i := 0; i < len(path)-1; i++ {
		key := path[i]
		nextKeyIsInt := isIntKey(path[i+1])
		child := ensureChildContainer(cur, key, nextKeyIsInt)
		cur = child
		chain = append(chain, child)
	}
	last := path[len(path)-1]
	changed := setLeaf(cur, last, newValue)
	// Growing an array replaces its slice header, so store every
	// intermediate back into its parent, deepest first.
	for i := len(path) - 2; i >= 0; i-- {
		child := derefContainer(chain[i+1])
		if k, ok := path[i].(int); ok {
			(*chain[i].a)[k] = child
		} else {
			(*chain[i].m)[path[i].(string)] = child
		}
	}
	*value = derefContainer(root)
	return changed
}

// container is a uniform handle over either a map[string]interface{} or a
// *[]interface{}, so intermediate traversal can mutate in place regardless
// of which kind the path implies.
type container struct {
	m *map[string]interface{}
	a *[]interface{}
}

func ensureContainer(value *interface{}, firstKey Key) container {
	switch firstKey.(type) {
	case int:
		arr, ok := (*value).([]interface{})
		if !ok {
			arr = []interface{}{}
		}
		return container{a: &arr}
	default:
		m, ok := (*value).(map[string]interface{})
		if !ok {
			m = map[string]interface{}{}
		}
		return container{m: &m}
	}
}

func derefContainer(c container) interface{} {
	if c.m != nil {
		return *c.m
	}
	return *c.a
}

func ensureChildContainer(c container, key Key, childIsArray bool) container {
	switch k := key.(type) {
	case string:
		if c.m == nil {
			panic("jsonpath: string key against array container")
		}
		existing, ok := (*c.m)[k]
		if child, isMap := existing.(map[string]interface{}); ok && isMap && !childIsArray {
			return container{m: &child}
		}
		if child, isArr := existing.([]interface{}); ok && isArr && childIsArray {
			return container{a: &child}
		}
		if childIsArray {
			arr := []interface{}{}
			(*c.m)[k] = arr
			return container{a: &arr}
		}
		m := map[string]interface{}{}
		(*c.m)[k] = m
		return container{m: &m}
	case int:
		if c.a == nil {
			panic("jsonpath: int key against object container")
		}
		growArray(c.a, k)
		existing := (*c.a)[k]
		if child, isMap := existing.(map[string]interface{}); isMap && !childIsArray {
			return container{m: &child}
		}
		if child, isArr := existing.([]interface{}); isArr && childIsArray {
			return container{a: &child}
		}
		if childIsArray {
			arr := []interface{}{}
			(*c.a)[k] = arr
			return container{a: &arr}
		}
		m := map[string]interface{}{}
		(*c.a)[k] = m
		return container{m: &m}
	default:
		panic(fmt.Sprintf("jsonpath: unsupported key type %T", key))
	}
}

func setLeaf(c container, key Key, value interface{}) bool {
	switch k := key.(type) {
	case string:
		if c.m == nil {
			panic("jsonpath: string key against array container")
		}
		old, existed := (*c.m)[k]
		(*c.m)[k] = value
		return !existed || !DeepEqual(old, value)
	case int:
		if c.a == nil {
			panic("jsonpath: int key against object container")
		}
		growArray(c.a, k)
		old := (*c.a)[k]
		(*c.a)[k] = value
		return !DeepEqual(old, value)
	default:
		panic(fmt.Sprintf("jsonpath: unsupported key type %T", key))
	}
}

func growArray(a *[]interface{}, idx int) {
	for len(*a) <= idx {
		*a = append(*a, nil)
	}
}

func isIntKey(k Key) bool {
	_, ok := k.(int)
	return ok
}

func deleteAt(value *interface{}, path Path) bool {
	parentPath := path[:len(path)-1]
	last := path[len(path)-1]

	parent, ok := Get(*value, parentPath)
	if !ok {
		return false // no-op on non-existent leaf
	}

	changed := false
	switch k := last.(type) {
	case string:
		m, ok := parent.(map[string]interface{})
		if !ok {
			return false
		}
		if _, present := m[k]; present {
			delete(m, k)
			changed = true
		}
		setParent(value, parentPath, m)
	case int:
		a, ok := parent.([]interface{})
		if !ok || k < 0 || k >= len(a) {
			return false
		}
		if a[k] != nil {
			a[k] = nil
			changed = true
		}
		a = trimTrailingUndefined(a)
		setParent(value, parentPath, a)
	}
	return changed
}

// trimTrailingUndefined pops trailing nil elements, matching the spec's
// "setting undefined deletes the leaf; trailing undefined array elements
// are popped afterward" rule.
func trimTrailingUndefined(a []interface{}) []interface{} {
	end := len(a)
	for end > 0 && a[end-1] == nil {
		end--
	}
	return a[:end]
}

func setParent(value *interface{}, parentPath Path, newParentValue interface{}) {
	if len(parentPath) == 0 {
		*value = newParentValue
		return
	}
	Set(value, parentPath, newParentValue)
}

// DeepEqual reports structural equality for two decoded-JSON trees
// (map[string]interface{}, []interface{}, string, float64/int, bool, nil).
func DeepEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !DeepEqual(v, bvv) {
				return false
			}
		}
		return true
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return numericAwareEqual(a, b)
	}
}

// numericAwareEqual treats int and float64 representations of the same
// number as equal, since callers may construct literals with either.
func numericAwareEqual(a, b interface{}) bool {
	af, aIsNum := asFloat(a)
	bf, bIsNum := asFloat(b)
	if aIsNum && bIsNum {
		return af == bf
	}
	return a == b
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// VisitFunc is called on each non-reference subtree visited by Traverse. If
// it returns (value, true), that value replaces the visited subtree.
type VisitFunc func(value interface{}) (interface{}, bool)

// Traverse walks value depth-first, calling fn on every subtree (leaves,
// arrays, and objects, innermost first) and substituting fn's
// non-undefined results. Cyclic references (by pointer identity of map/
// slice headers) are visited once to avoid infinite recursion.
func Traverse(value interface{}, fn VisitFunc) interface{} {
	seen := map[interface{}]bool{}
	return traverse(value, fn, seen)
}

func traverse(value interface{}, fn VisitFunc, seen map[interface{}]bool) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		key := fmt.Sprintf("%p", v)
		if seen[key] {
			return v
		}
		seen[key] = true
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = traverse(val, fn, seen)
		}
		if replaced, ok := fn(out); ok {
			return replaced
		}
		return out
	case []interface{}:
		key := fmt.Sprintf("%p", v)
		if seen[key] {
			return v
		}
		seen[key] = true
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = traverse(val, fn, seen)
		}
		if replaced, ok := fn(out); ok {
			return replaced
		}
		return out
	default:
		if replaced, ok := fn(value); ok {
			return replaced
		}
		return value
	}
}
