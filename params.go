package business

import (
	"sort"
	"strings"

	"github.com/goliatone/go-business/layering"
)

// Params carries free-form options through every business operation. Values
// may themselves be nested Params (or plain map[string]any), addressed with
// dotted keys such as "soft-deletable.mode".
type Params map[string]any

// Get walks a dotted key through nested maps. It reports false when any
// segment is missing, holds nil, or an intermediate value is not a map.
func (p Params) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	parts := strings.Split(key, ".")
	current := map[string]any(p)
	for i, part := range parts {
		value, ok := current[part]
		if !ok || value == nil {
			return nil, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		next, ok := asMap(value)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// Set assigns value under a dotted key, creating intermediate maps as needed.
// It is a no-op on a nil receiver; use SetDeep to start from nil.
func (p Params) Set(key string, value any) {
	if p == nil {
		return
	}
	SetDeep(p, key, value)
}

// SetDeep assigns value under key starting at root. A nil root is replaced by
// a new map, which is returned so callers can chain from nothing.
// Intermediate segments that are missing or not maps are overwritten.
func SetDeep(root Params, key string, value any) Params {
	if root == nil {
		root = Params{}
	}
	parts := strings.Split(key, ".")
	current := map[string]any(root)
	for i, part := range parts {
		if i == len(parts)-1 {
			current[part] = value
			break
		}
		next, ok := asMap(current[part])
		if !ok {
			child := Params{}
			current[part] = child
			next = child
		}
		current = next
	}
	return root
}

// GetString returns the string stored under key.
func (p Params) GetString(key string) (string, bool) {
	value, ok := p.Get(key)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// GetBool returns the bool stored under key.
func (p Params) GetBool(key string) (bool, bool) {
	value, ok := p.Get(key)
	if !ok {
		return false, false
	}
	b, ok := value.(bool)
	return b, ok
}

// GetInt64 returns the integer stored under key, accepting any Go integer kind.
func (p Params) GetInt64(key string) (int64, bool) {
	value, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	return toInt64(value)
}

// Keys returns the top-level keys sorted alphabetically.
func (p Params) Keys() []string {
	if len(p) == 0 {
		return nil
	}
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of all nested maps. Leaf values are shared.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return Params(layering.Clone(map[string]any(p)))
}

// MergeParams deep merges layers ordered from strongest to weakest. Nil layers
// are skipped; the result is nil only when every layer is empty.
func MergeParams(layers ...Params) Params {
	maps := make([]map[string]any, 0, len(layers))
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		maps = append(maps, map[string]any(layer))
	}
	if len(maps) == 0 {
		return nil
	}
	return Params(layering.Merge(maps...))
}

func asMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case Params:
		if typed == nil {
			return nil, false
		}
		return map[string]any(typed), true
	case map[string]any:
		if typed == nil {
			return nil, false
		}
		return typed, true
	default:
		return nil, false
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}
