package business

import "iter"

// Empty returns a sequence yielding nothing.
func Empty[T any]() iter.Seq[T] {
	return func(func(T) bool) {}
}

// Filter returns a lazy sequence of the elements of seq for which keep
// reports true, preserving order.
func Filter[T any](seq iter.Seq[T], keep func(T) bool) iter.Seq[T] {
	if seq == nil {
		return Empty[T]()
	}
	return func(yield func(T) bool) {
		for item := range seq {
			if !keep(item) {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

// First returns the first element of seq.
func First[T any](seq iter.Seq[T]) (T, bool) {
	var zero T
	if seq == nil {
		return zero, false
	}
	for item := range seq {
		return item, true
	}
	return zero, false
}
