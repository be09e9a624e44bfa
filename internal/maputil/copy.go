// Package maputil provides deep-copy and path helpers for the untyped
// document maps that manifests and templates pass around.
package maputil

import "sort"

// DeepCopyMap performs a deep copy of a map[string]interface{}.
func DeepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}

	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}

	return dst
}

// DeepCopySlice performs a deep copy of a []interface{}.
func DeepCopySlice(src []interface{}) []interface{} {
	if src == nil {
		return nil
	}

	dst := make([]interface{}, len(src))
	for i, v := range src {
		dst[i] = deepCopyValue(v)
	}

	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return DeepCopyMap(val)
	case []interface{}:
		return DeepCopySlice(val)
	default:
		return v
	}
}

// SetPath stores value under the nested key path, creating intermediate
// maps. Non-map values on the way are replaced. An empty path is a no-op.
func SetPath(m map[string]interface{}, path []string, value interface{}) {
	if len(path) == 0 {
		return
	}

	for _, k := range path[:len(path)-1] {
		next, ok := m[k].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			m[k] = next
		}

		m = next
	}

	m[path[len(path)-1]] = value
}

// GetPath returns the value under the nested key path.
func GetPath(m map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = m

	for _, k := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}

		cur, ok = obj[k]
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
