// Package movies is the sample domain wired with every bundled behavior.
package movies

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/pkg/activity"
	"github.com/goliatone/go-business/pkg/auditable"
	"github.com/goliatone/go-business/pkg/filter"
	"github.com/goliatone/go-business/pkg/sluggable"
	"github.com/goliatone/go-business/pkg/softdelete"
	"github.com/goliatone/go-business/pkg/timestampable"
)

const (
	// SearchVariant answers title substring searches.
	SearchVariant = "search"
	// ParamSearch holds the text SearchVariant looks for.
	ParamSearch = "searchstring"
	// DateLayout formats release dates in slugs and on the command line.
	DateLayout = "2006-01-02"
)

// Movie is a catalogue entry.
type Movie struct {
	business.Model
	sluggable.SlugField
	softdelete.DeletedAtField
	timestampable.Fields

	Title       string    `json:"title"`
	ReleaseDate time.Time `json:"release_date"`
	Genre       string    `json:"genre"`
	Price       float64   `json:"price"`
}

// Option configures NewBusiness.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	now       func() time.Time
	emitter   *activity.Emitter
	evaluator filter.Evaluator
}

// WithLogger sets the business logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock sets the time source shared by the timestamp, soft delete,
// audit and filter behaviors.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEmitter sends audit events through emitter.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(c *config) {
		c.emitter = emitter
	}
}

// WithEvaluator selects the engine behind the where variant. expr is used by
// default.
func WithEvaluator(evaluator filter.Evaluator) Option {
	return func(c *config) {
		if evaluator != nil {
			c.evaluator = evaluator
		}
	}
}

// Business manages movies.
type Business struct {
	*business.Business[*Movie]
	slugs *sluggable.Behavior[*Movie]
	trash *softdelete.Behavior[*Movie]
}

// NewBusiness attaches, in order: timestamps, slugs built from title,
// release date, genre and price, soft deletion, auditing and the where
// filter.
func NewBusiness(store business.Store[*Movie], opts ...Option) (*Business, error) {
	cfg := config{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.evaluator == nil {
		cfg.evaluator = filter.NewExpr(filter.ExprWithProgramCache(filter.NewProgramCache(0)))
	}

	b, err := business.New(store,
		business.WithName[*Movie]("movies"),
		business.WithLogger[*Movie](cfg.logger),
		business.WithVariant(SearchVariant, searchVariant(store)),
		business.WithBehaviors(
			timestampable.New[*Movie](timestampable.WithClock(cfg.now)),
			sluggable.New(sluggable.WithSources(
				func(m *Movie) string { return m.Title },
				func(m *Movie) string { return formatDate(m.ReleaseDate) },
				func(m *Movie) string { return m.Genre },
				func(m *Movie) string { return strconv.FormatFloat(m.Price, 'f', -1, 64) },
			)),
			softdelete.New[*Movie](softdelete.WithClock(cfg.now)),
			auditable.New[*Movie](auditable.WithEmitter(cfg.emitter), auditable.WithObjectType("movie"), auditable.WithClock(cfg.now)),
			filter.New[*Movie](cfg.evaluator, filter.WithClock(cfg.now)),
		),
	)
	if err != nil {
		return nil, err
	}

	slugs, _ := sluggable.From(b)
	trash, _ := softdelete.From(b)
	return &Business{Business: b, slugs: slugs, trash: trash}, nil
}

// Search returns the movies whose title contains s.
func (b *Business) Search(ctx context.Context, s string, params business.Params) ([]*Movie, error) {
	return b.FindAll(ctx, SearchVariant, business.SetDeep(params.Clone(), ParamSearch, s))
}

// BySlug returns the movie owning slug.
func (b *Business) BySlug(ctx context.Context, slug string, params business.Params) (*Movie, bool, error) {
	return b.slugs.FindBySlug(ctx, slug, params)
}

// Where returns the movies matching expression.
func (b *Business) Where(ctx context.Context, expression string, args map[string]any, params business.Params) ([]*Movie, error) {
	return b.FindAll(ctx, filter.DefaultVariant, business.MergeParams(filter.WhereParams(expression, args), params))
}

// Restore clears the deletion mark of the movie with id. The audit event is
// recorded as a restore.
func (b *Business) Restore(ctx context.Context, id int64, params business.Params) (bool, error) {
	return b.trash.RestoreByID(ctx, id, business.SetDeep(params.Clone(), auditable.ParamVerb, activity.VerbRestore))
}

// ForceDelete removes the movie with id, deleted or not.
func (b *Business) ForceDelete(ctx context.Context, id int64, params business.Params) (bool, error) {
	return b.trash.ForceDeleteByID(ctx, id, params)
}

// Trash returns the soft-deleted movies.
func (b *Business) Trash(ctx context.Context, params business.Params) ([]*Movie, error) {
	return b.FindAll(ctx, "all", business.SetDeep(params.Clone(), softdelete.ParamMode, string(softdelete.ModeOnlyDeleted)))
}

// Genres returns the distinct genres of the visible movies, sorted.
func (b *Business) Genres(ctx context.Context, params business.Params) ([]string, error) {
	all, err := b.FindAll(ctx, "all", params)
	if err != nil {
		return nil, err
	}
	var genres []string
	for _, m := range all {
		if m.Genre != "" && !slices.Contains(genres, m.Genre) {
			genres = append(genres, m.Genre)
		}
	}
	slices.Sort(genres)
	return genres, nil
}

// ActorParams returns params attributing the call to actor within tenant.
func ActorParams(actor, tenant string) business.Params {
	params := business.SetDeep(nil, auditable.ParamActorID, actor)
	if tenant != "" {
		params.Set(auditable.ParamTenantID, tenant)
	}
	return params
}

// ParseDate parses a release date in DateLayout.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(value))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// searchVariant reads from store directly; the business still threads the
// result through its after-find chain.
func searchVariant(store business.Store[*Movie]) business.VariantFunc[*Movie] {
	return func(ctx context.Context, params business.Params) (iter.Seq[*Movie], error) {
		s, ok := params.GetString(ParamSearch)
		if !ok {
			return business.Empty[*Movie](), nil
		}
		all, err := store.All(ctx)
		if err != nil {
			return nil, err
		}
		return business.Filter(all, func(m *Movie) bool {
			return strings.Contains(m.Title, s)
		}), nil
	}
}
