package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Env is the evaluation environment. Expressions address data through named
// roots: "base" holds environment-provided values (current time), "input"
// holds caller-supplied data, and iteration contexts add "item" and "index".
type Env struct {
	roots map[string]any
}

// NewEnv builds an environment over the given input data.
func NewEnv(input map[string]any) *Env {
	now := time.Now().UTC()
	return &Env{roots: map[string]any{
		"base": map[string]any{
			"now":   now.Format(time.RFC3339),
			"today": now.Format("2006-01-02"),
		},
		"input": input,
	}}
}

// WithItem returns a copy of the environment extended with the current
// iteration item and its index.
func (e *Env) WithItem(item any, index int) *Env {
	roots := make(map[string]any, len(e.roots)+2)
	for k, v := range e.roots {
		roots[k] = v
	}
	roots["item"] = item
	roots["index"] = index
	return &Env{roots: roots}
}

// Root returns a named root, or nil if absent.
func (e *Env) Root(name string) any {
	return e.roots[name]
}

// Resolve walks a dotted path (with optional [n] indexes) through the
// environment. The first segment names a root. Missing keys resolve to nil;
// only a structurally impossible access (indexing a non-array, unknown root)
// is an error.
func (e *Env) Resolve(path string) (any, error) {
	segments := strings.Split(path, ".")
	name, indexes, err := splitSegment(segments[0])
	if err != nil {
		return nil, err
	}

	current, ok := e.roots[name]
	if !ok {
		return nil, fmt.Errorf("unknown root %q", name)
	}
	if current, err = applyIndexes(current, indexes); err != nil {
		return nil, err
	}

	for _, seg := range segments[1:] {
		name, indexes, err = splitSegment(seg)
		if err != nil {
			return nil, err
		}
		obj, ok := current.(map[string]any)
		if !ok {
			if current == nil {
				return nil, nil
			}
			return nil, fmt.Errorf("cannot select %q from %s", name, typeLabel(current))
		}
		current = obj[name]
		if current, err = applyIndexes(current, indexes); err != nil {
			return nil, err
		}
	}
	return current, nil
}

func applyIndexes(value any, indexes []int) (any, error) {
	for _, idx := range indexes {
		arr, ok := value.([]any)
		if !ok {
			if value == nil {
				return nil, nil
			}
			return nil, fmt.Errorf("cannot index %s", typeLabel(value))
		}
		if idx < 0 || idx >= len(arr) {
			return nil, nil
		}
		value = arr[idx]
	}
	return value, nil
}

// splitSegment breaks "items[0][1]" into ("items", [0, 1]).
func splitSegment(seg string) (string, []int, error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, nil, nil
	}
	name := seg[:open]
	var indexes []int
	rest := seg[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("malformed index in segment %q", seg)
		}
		closing := strings.IndexByte(rest, ']')
		if closing < 0 {
			return "", nil, fmt.Errorf("unterminated index in segment %q", seg)
		}
		idx, err := strconv.Atoi(rest[1:closing])
		if err != nil {
			return "", nil, fmt.Errorf("non-numeric index in segment %q", seg)
		}
		indexes = append(indexes, idx)
		rest = rest[closing+1:]
	}
	return name, indexes, nil
}

func typeLabel(value any) string {
	switch value.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", value)
	}
}
