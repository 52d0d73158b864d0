package jsondb

import "strings"

// splitPath splits a dotted field path. It returns nil for an empty path or
// one with an empty segment.
func splitPath(field string) []string {
	if field == "" {
		return nil
	}
	segments := strings.Split(field, ".")
	for _, s := range segments {
		if s == "" {
			return nil
		}
	}
	return segments
}

// lookup follows path through nested objects starting at v.
func lookup(v Value, path []string) (Value, bool) {
	if len(path) == 0 {
		return Value{}, false
	}
	for _, segment := range path {
		if v.Kind() != KindObject {
			return Value{}, false
		}
		next, ok := v.Document().Get(segment)
		if !ok {
			return Value{}, false
		}
		v = next
	}
	return v, true
}

// parent returns the object holding the last segment of path. When create is
// set, missing intermediate objects are added. It fails when an intermediate
// exists but is not an object.
func parent(doc *Document, path []string, create bool) (*Document, bool) {
	for _, segment := range path[:len(path)-1] {
		next, ok := doc.Get(segment)
		if !ok {
			if !create {
				return nil, false
			}
			child := NewDocument()
			doc.Set(segment, Object(child))
			doc = child
			continue
		}
		if next.Kind() != KindObject {
			return nil, false
		}
		doc = next.Document()
	}
	return doc, true
}
