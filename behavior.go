package business

import (
	"context"
	"iter"
)

// Behavior intercepts the find, save and delete lifecycle of a business.
// Embed Base to inherit no-op defaults and override only what is needed.
type Behavior[T Record] interface {
	BeforeFind(ctx context.Context, name string, params Params)
	AfterFind(ctx context.Context, name string, params Params, results iter.Seq[T]) iter.Seq[T]
	BeforeSave(ctx context.Context, record T, params Params) Signal
	AfterSave(ctx context.Context, record T, params Params) Signal
	BeforeDelete(ctx context.Context, record T, params Params) Signal
	AfterDelete(ctx context.Context, record T, params Params) Signal
}

// VariantProvider is implemented by behaviors that expose named query
// variants of their own.
type VariantProvider[T Record] interface {
	Variants() []Variant[T]
}

// Factory builds a behavior bound to the business it is attached to. The
// business passes itself while it is being constructed; the registry and
// chains are complete only once New returns.
type Factory[T Record] func(b *Business[T]) Behavior[T]

// Base provides pass-through implementations of every Behavior callback.
type Base[T Record] struct{}

func (Base[T]) BeforeFind(context.Context, string, Params) {}

func (Base[T]) AfterFind(_ context.Context, _ string, _ Params, results iter.Seq[T]) iter.Seq[T] {
	return results
}

func (Base[T]) BeforeSave(context.Context, T, Params) Signal { return Continue }

func (Base[T]) AfterSave(context.Context, T, Params) Signal { return Continue }

func (Base[T]) BeforeDelete(context.Context, T, Params) Signal { return Continue }

func (Base[T]) AfterDelete(context.Context, T, Params) Signal { return Continue }
