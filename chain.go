package business

import (
	"context"
	"iter"
)

type (
	beforeFindFunc          func(ctx context.Context, name string, params Params)
	afterFindFunc[T Record] func(ctx context.Context, name string, params Params, results iter.Seq[T]) iter.Seq[T]
	interceptor[T Record]   func(ctx context.Context, record T, params Params) Signal
)

// chains holds the six interceptor sequences in attachment order. They are
// filled while the business is constructed and only read afterwards.
type chains[T Record] struct {
	beforeFind   []beforeFindFunc
	afterFind    []afterFindFunc[T]
	beforeSave   []interceptor[T]
	afterSave    []interceptor[T]
	beforeDelete []interceptor[T]
	afterDelete  []interceptor[T]
}

func (c *chains[T]) register(behavior Behavior[T]) {
	c.beforeFind = append(c.beforeFind, behavior.BeforeFind)
	c.afterFind = append(c.afterFind, behavior.AfterFind)
	c.beforeSave = append(c.beforeSave, behavior.BeforeSave)
	c.afterSave = append(c.afterSave, behavior.AfterSave)
	c.beforeDelete = append(c.beforeDelete, behavior.BeforeDelete)
	c.afterDelete = append(c.afterDelete, behavior.AfterDelete)
}

// chainResult summarises one pass over a save or delete chain.
type chainResult struct {
	aborted    bool
	softStop   bool
	abortIndex int
}

func (c chainResult) String() string {
	switch {
	case c.aborted:
		return Abort.String()
	case c.softStop:
		return SoftStop.String()
	default:
		return Continue.String()
	}
}

// runChain invokes the chain in order. An Abort stops the pass immediately; a
// SoftStop is remembered while the remaining interceptors keep running. Any
// value outside the declared signals is handled as Abort.
func runChain[T Record](ctx context.Context, chain []interceptor[T], record T, params Params) chainResult {
	result := chainResult{abortIndex: -1}
	for i, fn := range chain {
		switch fn(ctx, record, params) {
		case Continue:
		case SoftStop:
			result.softStop = true
		default:
			result.aborted = true
			result.abortIndex = i
			return result
		}
	}
	return result
}
