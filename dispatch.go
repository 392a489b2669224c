package business

import (
	"context"
	"iter"
	"slices"
)

// Find runs the before-find chain, answers the named query variant and
// threads its records through the after-find chain, each interceptor
// receiving the sequence produced by the previous one.
//
// An unregistered name fails with an error matching ErrUnknownVariant after
// the before-find chain has run; the after-find chain is skipped. An empty
// result is not an error.
func (b *Business[T]) Find(ctx context.Context, name string, params Params) (iter.Seq[T], error) {
	params = b.withDefaults(params)

	for _, fn := range b.chains.beforeFind {
		fn(ctx, name, params)
	}

	variant, ok := b.variants.Lookup(name)
	if !ok {
		err := &UnknownVariantError{Business: b.name, Name: name, Known: b.variants.Names()}
		b.logger.WarnContext(ctx, "unknown query variant", "variant", name)
		return nil, err
	}

	results, err := variant(ctx, params)
	if err != nil {
		b.logger.WarnContext(ctx, "query variant failed", "variant", name, "error", err)
		return nil, wrapStorageError(b.name, "find "+name, err)
	}
	if results == nil {
		results = Empty[T]()
	}

	for _, fn := range b.chains.afterFind {
		results = fn(ctx, name, params, results)
		if results == nil {
			results = Empty[T]()
		}
	}

	b.logger.DebugContext(ctx, "find dispatched", "variant", name)
	return results, nil
}

// FindFirst returns the first record produced by Find, reporting false when
// there is none.
func (b *Business[T]) FindFirst(ctx context.Context, name string, params Params) (T, bool, error) {
	var zero T
	results, err := b.Find(ctx, name, params)
	if err != nil {
		return zero, false, err
	}
	record, ok := First(results)
	return record, ok, nil
}

// FindAll collects every record produced by Find.
func (b *Business[T]) FindAll(ctx context.Context, name string, params Params) ([]T, error) {
	results, err := b.Find(ctx, name, params)
	if err != nil {
		return nil, err
	}
	return slices.Collect(results), nil
}

// FindByID looks a record up through the "id" variant, so after-find
// interceptors still apply. params is copied before "id" is set.
func (b *Business[T]) FindByID(ctx context.Context, id int64, params Params) (T, bool, error) {
	params = SetDeep(params.Clone(), "id", id)
	return b.FindFirst(ctx, "id", params)
}

// Save runs the before-save chain, persists the record (insert when it has no
// identity, update otherwise) unless an interceptor soft-stopped, then runs
// the after-save chain.
//
// The result is true only when every interceptor continued and persistence
// succeeded. An Abort returns false at once. A SoftStop skips persistence (in
// the before chain) but lets the rest of the pipeline run before reporting
// false. A store failure returns false with an error matching ErrStorage and
// skips the after-save chain. Nothing already persisted is rolled back.
func (b *Business[T]) Save(ctx context.Context, record T, params Params) (bool, error) {
	return b.dispatch(ctx, "save", b.chains.beforeSave, b.chains.afterSave, record, b.withDefaults(params), b.persist)
}

// Delete mirrors Save with the delete chains and Store.Remove.
func (b *Business[T]) Delete(ctx context.Context, record T, params Params) (bool, error) {
	return b.dispatch(ctx, "delete", b.chains.beforeDelete, b.chains.afterDelete, record, b.withDefaults(params), b.store.Remove)
}

// DeleteByID finds the record through FindByID with the same params and
// deletes it. When nothing is found it reports false without running any
// delete interceptor.
func (b *Business[T]) DeleteByID(ctx context.Context, id int64, params Params) (bool, error) {
	record, ok, err := b.FindByID(ctx, id, params)
	if err != nil {
		return false, err
	}
	if !ok {
		b.logger.DebugContext(ctx, "delete skipped: record not found", "id", id)
		return false, nil
	}
	return b.Delete(ctx, record, params)
}

func (b *Business[T]) persist(ctx context.Context, record T) error {
	if IsNew(record) {
		return b.store.Insert(ctx, record)
	}
	return b.store.Update(ctx, record)
}

func (b *Business[T]) dispatch(
	ctx context.Context,
	op string,
	before, after []interceptor[T],
	record T,
	params Params,
	commit func(context.Context, T) error,
) (bool, error) {
	pre := runChain(ctx, before, record, params)
	if pre.aborted {
		b.logger.DebugContext(ctx, op+" aborted", "stage", "before", "interceptor", pre.abortIndex)
		return false, nil
	}

	if pre.softStop {
		b.logger.DebugContext(ctx, op+" suppressed", "stage", "before")
	} else if err := commit(ctx, record); err != nil {
		b.logger.WarnContext(ctx, op+" failed", "error", err)
		return false, wrapStorageError(b.name, op, err)
	}

	post := runChain(ctx, after, record, params)
	if post.aborted {
		b.logger.DebugContext(ctx, op+" aborted", "stage", "after", "interceptor", post.abortIndex)
		return false, nil
	}

	ok := !pre.softStop && !post.softStop
	b.logger.DebugContext(ctx, op+" dispatched", "before", pre.String(), "after", post.String(), "ok", ok)
	return ok, nil
}
