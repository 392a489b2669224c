package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	business "github.com/goliatone/go-business"
)

const (
	// ParamExpr holds the expression evaluated by the where variant.
	ParamExpr = "filter.expr"
	// ParamArgs holds the map exposed to the expression as args.
	ParamArgs = "filter.args"
	// DefaultVariant is the name of the query variant the behavior exposes.
	DefaultVariant = "where"
)

// Option configures the behavior.
type Option func(*options)

type options struct {
	variant string
	now     func() time.Time
}

// WithVariantName changes the name of the query variant.
func WithVariantName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.variant = name
		}
	}
}

// WithClock sets the time exposed as now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Behavior exposes a query variant selecting records with an expression.
type Behavior[T business.Record] struct {
	business.Base[T]
	owner     *business.Business[T]
	evaluator Evaluator
	variant   string
	now       func() time.Time
}

// New returns a factory attaching the where variant, evaluated with
// evaluator, to a business.
func New[T business.Record](evaluator Evaluator, opts ...Option) business.Factory[T] {
	cfg := options{variant: DefaultVariant, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return func(owner *business.Business[T]) business.Behavior[T] {
		return &Behavior[T]{
			owner:     owner,
			evaluator: evaluator,
			variant:   cfg.variant,
			now:       cfg.now,
		}
	}
}

// Variants exposes the where variant. Nothing is registered without an
// evaluator.
func (b *Behavior[T]) Variants() []business.Variant[T] {
	if b.evaluator == nil {
		return nil
	}
	return []business.Variant[T]{{Name: b.variant, Find: b.find}}
}

// WhereParams builds the params selecting records matching expression.
func WhereParams(expression string, args map[string]any) business.Params {
	params := business.SetDeep(nil, ParamExpr, expression)
	if len(args) > 0 {
		params.Set(ParamArgs, args)
	}
	return params
}

// find evaluates the expression against every stored record. A missing
// expression yields no records.
func (b *Behavior[T]) find(ctx context.Context, params business.Params) (iter.Seq[T], error) {
	expression, ok := params.GetString(ParamExpr)
	if !ok || expression == "" {
		return business.Empty[T](), nil
	}
	args := argsFrom(params)
	all, err := b.owner.Store().All(ctx)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	now := b.now()
	var matched []T
	for record := range all {
		fields, err := RecordFields(record)
		if err != nil {
			return nil, err
		}
		ok, err := Match(ctx, b.evaluator, expression, Env{Record: fields, Args: args, Now: now})
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, record)
		}
	}
	b.owner.Logger().DebugContext(ctx, "filter evaluated",
		"engine", b.evaluator.Engine(),
		"expr", expression,
		"matched", len(matched),
		"duration", time.Since(started),
	)
	return slices.Values(matched), nil
}

// RecordFields returns record as its JSON object.
func RecordFields(record any) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("filter: encode record: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("filter: record is not an object: %w", err)
	}
	return fields, nil
}

// Predicate adapts an expression to func(T) bool for business.Query. The
// first evaluation error is kept and reported by Err; failing records do not
// match.
type Predicate[T any] struct {
	ctx        context.Context
	evaluator  Evaluator
	expression string
	args       map[string]any
	now        time.Time

	mu  sync.Mutex
	err error
}

// Where builds a predicate evaluating expression with args.
func Where[T any](ctx context.Context, evaluator Evaluator, expression string, args map[string]any) *Predicate[T] {
	return &Predicate[T]{
		ctx:        ctx,
		evaluator:  evaluator,
		expression: expression,
		args:       args,
		now:        time.Now(),
	}
}

// Match reports whether record satisfies the expression.
func (p *Predicate[T]) Match(record T) bool {
	fields, err := RecordFields(record)
	if err == nil {
		var ok bool
		ok, err = Match(p.ctx, p.evaluator, p.expression, Env{Record: fields, Args: p.args, Now: p.now})
		if err == nil {
			return ok
		}
	}
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
	return false
}

// Err returns the first evaluation error.
func (p *Predicate[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func argsFrom(params business.Params) map[string]any {
	value, ok := params.Get(ParamArgs)
	if !ok {
		return nil
	}
	switch args := value.(type) {
	case business.Params:
		return map[string]any(args)
	case map[string]any:
		return args
	default:
		return nil
	}
}
