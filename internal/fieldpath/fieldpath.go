// Package fieldpath reads and writes values inside the nested field tree of
// an extraction result using dotted path expressions such as
// "sprzedawca.nazwa" or "pozycje.0.cena_netto". A segment consisting only of
// digits addresses an array index; any other segment addresses an object key.
package fieldpath

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrEmptyPath is returned for a path with no usable segments.
var ErrEmptyPath = eris.New("fieldpath: empty path")

// Get returns the value at path inside root. The second return value is
// false when any segment is missing, out of range, or addressed against an
// incompatible container. The root container is always an object, so the
// first segment is an object key even when numeric, matching Assign.
func Get(root map[string]any, path string) (any, bool) {
	segs, err := split(path)
	if err != nil {
		return nil, false
	}

	var node any = root
	for i, seg := range segs {
		if idx, numeric := arrayIndex(seg); numeric && i > 0 {
			arr, ok := node.([]any)
			if !ok || idx >= len(arr) {
				return nil, false
			}
			node = arr[idx]
			continue
		}
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		child, ok := m[seg]
		if !ok {
			return nil, false
		}
		node = child
	}
	return node, true
}

// Set assigns value at path inside a deep copy of root and returns the copy;
// the caller's tree is never mutated. Missing intermediate containers are
// materialized (objects as empty maps, arrays grown with empty-object
// padding up to the required index). A node whose shape conflicts with the
// path is replaced wholesale, discarding its previous contents. Callers that
// batch many writes should Clone once and use Assign.
func Set(root map[string]any, path string, value any) (map[string]any, error) {
	clone := Clone(root)
	if err := Assign(clone, path, value); err != nil {
		return nil, err
	}
	return clone, nil
}

// Assign writes value at path directly into root, mutating it in place.
// Same materialization and replacement semantics as Set.
func Assign(root map[string]any, path string, value any) error {
	segs, err := split(path)
	if err != nil {
		return err
	}

	// The root container is always an object, so the first segment is an
	// object key even when it is numeric.
	head, rest := segs[0], segs[1:]
	if len(rest) == 0 {
		root[head] = value
		return nil
	}
	root[head] = assign(root[head], rest, value)
	return nil
}

// assign descends into node along segs, materializing or replacing
// containers as dictated by each segment, and returns the (possibly new)
// container for the caller to re-attach.
func assign(node any, segs []string, value any) any {
	seg := segs[0]

	if idx, numeric := arrayIndex(seg); numeric {
		arr, ok := node.([]any)
		if !ok {
			arr = []any{}
		}
		for len(arr) <= idx {
			arr = append(arr, map[string]any{})
		}
		if len(segs) == 1 {
			arr[idx] = value
		} else {
			arr[idx] = assign(arr[idx], segs[1:], value)
		}
		return arr
	}

	m, ok := node.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	if len(segs) == 1 {
		m[seg] = value
	} else {
		m[seg] = assign(m[seg], segs[1:], value)
	}
	return m
}

// Clone deep-copies a field tree. Scalar leaves are copied by value.
func Clone(root map[string]any) map[string]any {
	if root == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(root))
	for k, v := range root {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Base returns the first segment of a path ("pozycje.0.cena_netto" →
// "pozycje"). Confidence weights and category groupings key on base names.
func Base(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

func split(path string) ([]string, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, eris.Errorf("fieldpath: empty segment in %q", path)
		}
	}
	return segs, nil
}

func arrayIndex(seg string) (int, bool) {
	idx := 0
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		idx = idx*10 + int(c-'0')
	}
	return idx, len(seg) > 0
}
