// Package sluggable attaches unique, URL-safe slugs to records before they
// are saved and answers the "slug" query variant.
//
// The slug is built from one or more source fields (Title by default). When
// another stored record already owns the candidate, a counter is appended
// after the separator ("the-matrix__2", "the-matrix__3", ...). Uniqueness is
// checked against Store.All, so records hidden by after-find behaviors such as
// soft deletion still reserve their slug. The check and the write are not
// atomic; stores shared by concurrent writers should also enforce uniqueness.
package sluggable

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"strconv"
	"strings"

	business "github.com/goliatone/go-business"
)

// DefaultField is the source field used when no option selects one.
const DefaultField = "Title"

// DefaultSeparator separates the base slug from the collision counter.
const DefaultSeparator = "__"

// DefaultVariant is the query variant name answering slug lookups.
const DefaultVariant = "slug"

// Sluggable is implemented by records carrying a slug.
type Sluggable interface {
	GetSlug() string
	SetSlug(slug string)
}

// Record is the constraint on records the behavior manages.
type Record interface {
	business.Record
	Sluggable
}

// SlugField is an embeddable Sluggable implementation.
type SlugField struct {
	Slug string `json:"slug"`
}

func (f *SlugField) GetSlug() string {
	if f == nil {
		return ""
	}
	return f.Slug
}

func (f *SlugField) SetSlug(slug string) {
	f.Slug = slug
}

// Option configures the behavior.
type Option[T Record] func(*Behavior[T])

// WithFields builds the slug from the named exported fields, read by
// reflection and formatted with fmt.Sprint. It replaces any earlier sources.
func WithFields[T Record](names ...string) Option[T] {
	return func(b *Behavior[T]) {
		b.sources = b.sources[:0]
		b.fields = append([]string(nil), names...)
		for _, name := range names {
			b.sources = append(b.sources, fieldSource[T](name))
		}
	}
}

// WithSources builds the slug from accessor functions. It replaces any
// earlier sources.
func WithSources[T Record](sources ...func(T) string) Option[T] {
	return func(b *Behavior[T]) {
		b.fields = nil
		b.sources = b.sources[:0]
		for _, source := range sources {
			if source != nil {
				b.sources = append(b.sources, source)
			}
		}
	}
}

// WithSeparator changes the counter separator.
func WithSeparator[T Record](separator string) Option[T] {
	return func(b *Behavior[T]) {
		if separator != "" {
			b.separator = separator
		}
	}
}

// WithVariantName changes the name of the lookup variant.
func WithVariantName[T Record](name string) Option[T] {
	return func(b *Behavior[T]) {
		if name != "" {
			b.variant = name
		}
	}
}

// Behavior assigns slugs on save.
type Behavior[T Record] struct {
	business.Base[T]
	owner     *business.Business[T]
	sources   []func(T) string
	fields    []string
	separator string
	variant   string
}

// New returns a factory attaching the behavior to a business.
func New[T Record](opts ...Option[T]) business.Factory[T] {
	return func(owner *business.Business[T]) business.Behavior[T] {
		b := &Behavior[T]{
			owner:     owner,
			separator: DefaultSeparator,
			variant:   DefaultVariant,
		}
		WithFields[T](DefaultField)(b)
		for _, opt := range opts {
			if opt != nil {
				opt(b)
			}
		}
		for _, name := range b.fields {
			if !hasField[T](name) {
				owner.Logger().Warn("sluggable source field not found", "field", name)
			}
		}
		return b
	}
}

// From returns the sluggable behavior attached to owner.
func From[T Record](owner *business.Business[T]) (*Behavior[T], bool) {
	for _, behavior := range owner.Behaviors() {
		if b, ok := behavior.(*Behavior[T]); ok {
			return b, true
		}
	}
	return nil, false
}

// Slug returns the base slug of record: every source normalised with
// GenerateSlug and joined with '-'.
func (b *Behavior[T]) Slug(record T) string {
	fragments := make([]string, 0, len(b.sources))
	for _, source := range b.sources {
		fragments = append(fragments, GenerateSlug(source(record)))
	}
	return strings.Join(fragments, "-")
}

// BeforeSave assigns a slug no other stored record owns. It aborts the save
// when the store cannot be read.
func (b *Behavior[T]) BeforeSave(ctx context.Context, record T, _ business.Params) business.Signal {
	taken, err := b.takenSlugs(ctx, record)
	if err != nil {
		b.owner.Logger().WarnContext(ctx, "sluggable: read existing slugs", "error", err)
		return business.Abort
	}

	base := b.Slug(record)
	candidate := base
	for candidate != "" && taken[candidate] {
		candidate = base + b.separator + strconv.Itoa(b.counter(candidate)+1)
	}
	record.SetSlug(candidate)
	return business.Continue
}

// Variants exposes the slug lookup.
func (b *Behavior[T]) Variants() []business.Variant[T] {
	return []business.Variant[T]{{Name: b.variant, Find: b.findBySlug}}
}

// FindBySlug returns the record owning slug through the business, so
// after-find behaviors apply.
func (b *Behavior[T]) FindBySlug(ctx context.Context, slug string, params business.Params) (T, bool, error) {
	params = business.SetDeep(params.Clone(), "slug", slug)
	return b.owner.FindFirst(ctx, b.variant, params)
}

func (b *Behavior[T]) findBySlug(ctx context.Context, params business.Params) (iter.Seq[T], error) {
	slug, ok := params.GetString("slug")
	if !ok {
		return business.Empty[T](), nil
	}
	all, err := b.owner.Store().All(ctx)
	if err != nil {
		return nil, err
	}
	return business.Filter(all, func(record T) bool {
		return record.GetSlug() == slug
	}), nil
}

// takenSlugs collects the non-empty slugs of every stored record other than
// record itself.
func (b *Behavior[T]) takenSlugs(ctx context.Context, record T) (map[string]bool, error) {
	all, err := b.owner.Store().All(ctx)
	if err != nil {
		return nil, err
	}
	self := record.GetID()
	taken := map[string]bool{}
	for other := range all {
		slug := other.GetSlug()
		if slug == "" {
			continue
		}
		if id := other.GetID(); self != nil && id != nil && *id == *self {
			continue
		}
		taken[slug] = true
	}
	return taken, nil
}

// counter parses the number after the last separator of slug, defaulting
// to 1.
func (b *Behavior[T]) counter(slug string) int {
	idx := strings.LastIndex(slug, b.separator)
	if idx < 0 {
		return 1
	}
	n, err := strconv.Atoi(slug[idx+len(b.separator):])
	if err != nil {
		return 1
	}
	return n
}

func fieldSource[T any](name string) func(T) string {
	return func(record T) string {
		v := reflect.ValueOf(record)
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return ""
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return ""
		}
		field := v.FieldByName(name)
		for field.IsValid() && field.Kind() == reflect.Pointer {
			if field.IsNil() {
				return ""
			}
			field = field.Elem()
		}
		if !field.IsValid() || !field.CanInterface() {
			return ""
		}
		return fmt.Sprint(field.Interface())
	}
}

func hasField[T any](name string) bool {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	_, ok := t.FieldByName(name)
	return ok
}
