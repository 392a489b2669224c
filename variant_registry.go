package business

import (
	"context"
	"iter"
	"sort"
	"sync"
)

// VariantFunc produces the records matching params for one named query.
type VariantFunc[T Record] func(ctx context.Context, params Params) (iter.Seq[T], error)

// Variant pairs a query name with the function that answers it.
type Variant[T Record] struct {
	Name string
	Find VariantFunc[T]
}

// VariantRegistry stores query variants keyed by name. The first registration
// of a name wins; later duplicates are ignored.
type VariantRegistry[T Record] struct {
	mu       sync.RWMutex
	variants map[string]VariantFunc[T]
}

// NewVariantRegistry constructs an empty registry.
func NewVariantRegistry[T Record]() *VariantRegistry[T] {
	return &VariantRegistry[T]{
		variants: make(map[string]VariantFunc[T]),
	}
}

// Register stores fn under name unless the name is already taken. It reports
// whether fn was stored. Empty names and nil functions are never stored.
func (r *VariantRegistry[T]) Register(name string, fn VariantFunc[T]) bool {
	if name == "" || fn == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.variants == nil {
		r.variants = make(map[string]VariantFunc[T])
	}
	if _, exists := r.variants[name]; exists {
		return false
	}
	r.variants[name] = fn
	return true
}

// RegisterAll registers every variant in order, returning the names that were
// skipped because they were already taken.
func (r *VariantRegistry[T]) RegisterAll(variants ...Variant[T]) []string {
	var skipped []string
	for _, variant := range variants {
		if !r.Register(variant.Name, variant.Find) {
			skipped = append(skipped, variant.Name)
		}
	}
	return skipped
}

// Lookup returns the variant registered under name.
func (r *VariantRegistry[T]) Lookup(name string) (VariantFunc[T], bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.variants[name]
	return fn, ok
}

// Names returns registered variant names sorted alphabetically.
func (r *VariantRegistry[T]) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
