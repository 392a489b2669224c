package business

import (
	"context"
	"iter"
)

// Store is the persistence collaborator a business dispatches to. The
// business never decides how data is stored; it only needs these operations.
//
// Implementations report a missing record on Update or Remove through an
// error, and Insert must assign the record identity.
type Store[T Record] interface {
	All(ctx context.Context) (iter.Seq[T], error)
	ByID(ctx context.Context, id int64) (iter.Seq[T], error)
	Insert(ctx context.Context, record T) error
	Update(ctx context.Context, record T) error
	Remove(ctx context.Context, record T) error
}

// Query narrows and orders the built-in "all" variant. Pass it (or a pointer
// to it) under the "query" params key.
type Query[T Record] struct {
	Where   func(T) bool
	OrderBy func(a, b T) int
}
