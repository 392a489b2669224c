package business

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
)

// Business owns a record collection and dispatches Find, Save and Delete
// through the interceptor chains of its attached behaviors.
//
// Chains and query variants are fixed once New returns, so a Business may be
// shared between goroutines as long as its Store is safe for concurrent use.
// The business adds no locking and no transactions of its own.
type Business[T Record] struct {
	name      string
	store     Store[T]
	variants  *VariantRegistry[T]
	chains    chains[T]
	behaviors []Behavior[T]
	defaults  Params
	logger    *slog.Logger
}

// Option configures a Business during New.
type Option[T Record] func(*config[T])

type config[T Record] struct {
	name      string
	variants  []Variant[T]
	factories []Factory[T]
	defaults  Params
	logger    *slog.Logger
}

// WithName sets the name used in logs and errors. It defaults to the record
// type name.
func WithName[T Record](name string) Option[T] {
	return func(cfg *config[T]) {
		cfg.name = strings.TrimSpace(name)
	}
}

// WithVariant declares a query variant owned by the business itself. Business
// variants are registered before the built-in "all" and "id" variants, so
// declaring one of those names replaces the built-in.
func WithVariant[T Record](name string, fn VariantFunc[T]) Option[T] {
	return func(cfg *config[T]) {
		cfg.variants = append(cfg.variants, Variant[T]{Name: name, Find: fn})
	}
}

// WithBehavior attaches a behavior. Behaviors run in the order they are
// attached, for before and after chains alike.
func WithBehavior[T Record](factory Factory[T]) Option[T] {
	return func(cfg *config[T]) {
		if factory != nil {
			cfg.factories = append(cfg.factories, factory)
		}
	}
}

// WithBehaviors attaches several behaviors in order.
func WithBehaviors[T Record](factories ...Factory[T]) Option[T] {
	return func(cfg *config[T]) {
		for _, factory := range factories {
			if factory != nil {
				cfg.factories = append(cfg.factories, factory)
			}
		}
	}
}

// WithDefaultParams sets params merged underneath the params of every call.
func WithDefaultParams[T Record](defaults Params) Option[T] {
	return func(cfg *config[T]) {
		cfg.defaults = defaults.Clone()
	}
}

// WithLogger sets the structured logger. Output is discarded by default.
func WithLogger[T Record](logger *slog.Logger) Option[T] {
	return func(cfg *config[T]) {
		cfg.logger = logger
	}
}

// New builds a business over store. Query variants are registered first for
// the business (WithVariant declarations, then "all" and "id"), then for each
// behavior in attachment order; the first registration of a name wins.
func New[T Record](store Store[T], opts ...Option[T]) (*Business[T], error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	cfg := config[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.name == "" {
		cfg.name = recordTypeName[T]()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	b := &Business[T]{
		name:     cfg.name,
		store:    store,
		variants: NewVariantRegistry[T](),
		defaults: cfg.defaults,
		logger:   cfg.logger.With("business", cfg.name),
	}

	b.registerVariants("business", cfg.variants)
	b.registerVariants("business", []Variant[T]{
		{Name: "all", Find: b.findAll},
		{Name: "id", Find: b.findByIDVariant},
	})

	for _, factory := range cfg.factories {
		behavior := factory(b)
		if behavior == nil {
			continue
		}
		b.attach(behavior)
	}

	return b, nil
}

func (b *Business[T]) attach(behavior Behavior[T]) {
	b.behaviors = append(b.behaviors, behavior)
	b.chains.register(behavior)
	if provider, ok := behavior.(VariantProvider[T]); ok {
		b.registerVariants(fmt.Sprintf("%T", behavior), provider.Variants())
	}
}

func (b *Business[T]) registerVariants(owner string, variants []Variant[T]) {
	for _, skipped := range b.variants.RegisterAll(variants...) {
		b.logger.Debug("query variant already registered", "variant", skipped, "owner", owner)
	}
}

// Name returns the business name.
func (b *Business[T]) Name() string {
	return b.name
}

// Store returns the underlying store. Behaviors use it to read records
// without going through the find chains.
func (b *Business[T]) Store() Store[T] {
	return b.store
}

// Variants returns the registered query variant names, sorted.
func (b *Business[T]) Variants() []string {
	return b.variants.Names()
}

// Behaviors returns the attached behaviors in attachment order.
func (b *Business[T]) Behaviors() []Behavior[T] {
	return slices.Clone(b.behaviors)
}

// Logger returns the business logger so behaviors can log with the same
// attributes.
func (b *Business[T]) Logger() *slog.Logger {
	return b.logger
}

// findAll answers the built-in "all" variant, applying an optional Query
// stored under the "query" key.
func (b *Business[T]) findAll(ctx context.Context, params Params) (iter.Seq[T], error) {
	results, err := b.store.All(ctx)
	if err != nil {
		return nil, err
	}
	query, ok := queryFrom[T](params)
	if !ok {
		return results, nil
	}
	if query.Where != nil {
		results = Filter(results, query.Where)
	}
	if query.OrderBy != nil {
		results = slices.Values(slices.SortedStableFunc(results, query.OrderBy))
	}
	return results, nil
}

// findByIDVariant answers the built-in "id" variant. A missing or non-integer
// "id" param yields no records.
func (b *Business[T]) findByIDVariant(ctx context.Context, params Params) (iter.Seq[T], error) {
	id, ok := params.GetInt64("id")
	if !ok {
		return Empty[T](), nil
	}
	return b.store.ByID(ctx, id)
}

func (b *Business[T]) withDefaults(params Params) Params {
	if len(b.defaults) == 0 {
		return params
	}
	return MergeParams(params, b.defaults)
}

func queryFrom[T Record](params Params) (Query[T], bool) {
	value, ok := params.Get("query")
	if !ok {
		return Query[T]{}, false
	}
	switch q := value.(type) {
	case Query[T]:
		return q, true
	case *Query[T]:
		if q == nil {
			return Query[T]{}, false
		}
		return *q, true
	default:
		return Query[T]{}, false
	}
}

func recordTypeName[T Record]() string {
	var zero T
	name := fmt.Sprintf("%T", zero)
	name = strings.TrimLeft(name, "*")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.ToLower(name)
}
