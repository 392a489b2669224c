// Package layering deep merges and clones the nested string-keyed maps used to
// carry business parameters. Any map with string keys counts as a nested
// layer, including named map types declared by callers.
package layering

import "reflect"

// Merge composes layers ordered from strongest to weakest, returning a new map
// that keeps explicit values from stronger layers while filling any missing
// keys from weaker ones. Nested maps present in both layers are merged
// recursively; any other value from the stronger layer wins outright.
func Merge(layers ...map[string]any) map[string]any {
	if len(layers) == 0 {
		return nil
	}
	merged := Clone(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeMaps(layers[i], merged)
	}
	return merged
}

// Clone returns a deep copy of m. Nested maps keep their concrete type; leaf
// values are shared.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = cloneValue(value)
	}
	return out
}

func mergeMaps(strong, weak map[string]any) map[string]any {
	if strong == nil {
		return Clone(weak)
	}
	out := Clone(weak)
	if out == nil {
		out = make(map[string]any, len(strong))
	}
	for key, value := range strong {
		existing, ok := out[key]
		if ok {
			out[key] = mergeValue(value, existing)
			continue
		}
		out[key] = cloneValue(value)
	}
	return out
}

func mergeValue(strong, weak any) any {
	strongMap := reflect.ValueOf(strong)
	weakMap := reflect.ValueOf(weak)
	if !isStringMap(strongMap) || !isStringMap(weakMap) {
		return cloneValue(strong)
	}
	result := reflect.MakeMapWithSize(strongMap.Type(), strongMap.Len()+weakMap.Len())
	keyType := strongMap.Type().Key()
	iter := weakMap.MapRange()
	for iter.Next() {
		result.SetMapIndex(iter.Key().Convert(keyType), valueOf(cloneValue(iter.Value().Interface()), strongMap.Type().Elem()))
	}
	iter = strongMap.MapRange()
	for iter.Next() {
		key := iter.Key()
		value := iter.Value().Interface()
		if existing := result.MapIndex(key); existing.IsValid() {
			result.SetMapIndex(key, valueOf(mergeValue(value, existing.Interface()), strongMap.Type().Elem()))
			continue
		}
		result.SetMapIndex(key, valueOf(cloneValue(value), strongMap.Type().Elem()))
	}
	return result.Interface()
}

func cloneValue(value any) any {
	rv := reflect.ValueOf(value)
	if !isStringMap(rv) {
		return value
	}
	if rv.IsNil() {
		return value
	}
	clone := reflect.MakeMapWithSize(rv.Type(), rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		clone.SetMapIndex(iter.Key(), valueOf(cloneValue(iter.Value().Interface()), rv.Type().Elem()))
	}
	return clone.Interface()
}

func isStringMap(v reflect.Value) bool {
	return v.IsValid() &&
		v.Kind() == reflect.Map &&
		v.Type().Key().Kind() == reflect.String &&
		v.Type().Elem().Kind() == reflect.Interface
}

// valueOf wraps value for insertion into a map whose element type is elem,
// mapping nil to the element's zero value.
func valueOf(value any, elem reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(elem)
	}
	return reflect.ValueOf(value)
}
