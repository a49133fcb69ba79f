package remote

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// In-process field semantics shared by MemoryStore and RedisStore. Values are
// normalized to JSON-like shapes: map[string]interface{}, []interface{},
// string, bool, int64, float64, time.Time and nil.

var segmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if !segmentPattern.MatchString(s) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// setPath writes value at segs, creating or replacing intermediate objects
func setPath(doc map[string]interface{}, segs []string, value interface{}) {
	cur := doc
	for _, s := range segs[:len(segs)-1] {
		next, ok := cur[s].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[s] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

func getPath(doc map[string]interface{}, segs []string) (interface{}, bool) {
	var cur interface{} = doc
	for _, s := range segs {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// applyFields merges dotted field paths into doc
func applyFields(doc map[string]interface{}, fields map[string]interface{}, now time.Time) error {
	for path, v := range fields {
		segs, err := splitPath(path)
		if err != nil {
			return err
		}
		setPath(doc, segs, normalize(v, now))
	}
	return nil
}

// applyMutation runs m against doc in place
func applyMutation(doc map[string]interface{}, m Mutation, now time.Time) error {
	segs, err := splitPath(m.Path)
	if err != nil {
		return err
	}
	cur, _ := getPath(doc, segs)

	switch m.Op {
	case OpSet:
		setPath(doc, segs, normalize(m.Value, now))
	case OpIncrement:
		delta, ok := normalize(m.Value, now).(int64)
		if !ok {
			return fmt.Errorf("%w: increment by non-integer %T", ErrInvalidPath, m.Value)
		}
		setPath(doc, segs, addNumber(cur, delta))
	case OpAddToSet:
		list := toList(cur)
		v := normalize(m.Value, now)
		for _, item := range list {
			if valuesEqual(item, v) {
				setPath(doc, segs, list)
				return nil
			}
		}
		setPath(doc, segs, append(list, v))
	case OpRemoveFromSet:
		v := normalize(m.Value, now)
		list := toList(cur)
		kept := make([]interface{}, 0, len(list))
		for _, item := range list {
			if !valuesEqual(item, v) {
				kept = append(kept, item)
			}
		}
		setPath(doc, segs, kept)
	case OpPutKey, OpDeleteKey:
		if m.Key == "" {
			return fmt.Errorf("%w: empty key under %q", ErrInvalidPath, m.Path)
		}
		obj, ok := cur.(map[string]interface{})
		if !ok {
			obj = make(map[string]interface{})
		}
		if m.Op == OpPutKey {
			obj[m.Key] = normalize(m.Value, now)
		} else {
			delete(obj, m.Key)
		}
		setPath(doc, segs, obj)
	default:
		return fmt.Errorf("%w: unknown op %s", ErrInvalidPath, m.Op)
	}
	return nil
}

func addNumber(cur interface{}, delta int64) interface{} {
	switch n := cur.(type) {
	case int64:
		return n + delta
	case float64:
		if n == float64(int64(n)) {
			return int64(n) + delta
		}
		return n + float64(delta)
	}
	return delta
}

func toList(v interface{}) []interface{} {
	list, ok := v.([]interface{})
	if !ok {
		return []interface{}{}
	}
	out := make([]interface{}, len(list))
	copy(out, list)
	return out
}

func valuesEqual(a, b interface{}) bool {
	if an, ok := asFloat(a); ok {
		if bn, ok := asFloat(b); ok {
			return an == bn
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// normalize converts caller values into the store's value shapes and
// resolves ServerTimestamp against now.
func normalize(v interface{}, now time.Time) interface{} {
	switch t := v.(type) {
	case nil, bool, string, int64, float64:
		return t
	case serverTimestamp:
		return now
	case time.Time:
		return t.UTC()
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalize(item, now)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = normalize(item, now)
		}
		return out
	case map[string]int64:
		out := make(map[string]interface{}, len(t))
		for k, n := range t {
			out[k] = n
		}
		return out
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

// cloneValue deep-copies maps and slices so snapshots never alias store state
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}
