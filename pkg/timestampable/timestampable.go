// Package timestampable maintains creation and modification timestamps on
// save.
package timestampable

import (
	"context"
	"time"

	business "github.com/goliatone/go-business"
)

// Timestamped is implemented by records carrying creation and modification
// times.
type Timestamped interface {
	GetCreatedAt() *time.Time
	SetCreatedAt(at *time.Time)
	GetModifiedAt() *time.Time
	SetModifiedAt(at *time.Time)
}

// Record is the constraint on records the behavior manages.
type Record interface {
	business.Record
	Timestamped
}

// Fields is an embeddable Timestamped implementation.
type Fields struct {
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

func (f *Fields) GetCreatedAt() *time.Time {
	if f == nil {
		return nil
	}
	return f.CreatedAt
}

func (f *Fields) SetCreatedAt(at *time.Time) { f.CreatedAt = at }

func (f *Fields) GetModifiedAt() *time.Time {
	if f == nil {
		return nil
	}
	return f.ModifiedAt
}

func (f *Fields) SetModifiedAt(at *time.Time) { f.ModifiedAt = at }

// Option configures the behavior.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Behavior stamps records before they are saved.
type Behavior[T Record] struct {
	business.Base[T]
	owner *business.Business[T]
	now   func() time.Time
}

// New returns a factory attaching the behavior to a business.
func New[T Record](opts ...Option) business.Factory[T] {
	cfg := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return func(owner *business.Business[T]) business.Behavior[T] {
		return &Behavior[T]{owner: owner, now: cfg.now}
	}
}

// BeforeSave sets CreatedAt on new records and ModifiedAt on existing ones.
// An existing record without CreatedAt gets the stored value back; when the
// store cannot be read the save is aborted.
func (b *Behavior[T]) BeforeSave(ctx context.Context, record T, _ business.Params) business.Signal {
	now := b.now()
	if business.IsNew(record) {
		record.SetModifiedAt(nil)
		record.SetCreatedAt(&now)
		return business.Continue
	}

	if record.GetCreatedAt() == nil {
		createdAt, err := b.storedCreatedAt(ctx, *record.GetID())
		if err != nil {
			b.owner.Logger().WarnContext(ctx, "timestampable: load created_at", "id", *record.GetID(), "error", err)
			return business.Abort
		}
		record.SetCreatedAt(createdAt)
	}
	record.SetModifiedAt(&now)
	return business.Continue
}

// storedCreatedAt reads the store directly so after-find filters cannot hide
// the row.
func (b *Behavior[T]) storedCreatedAt(ctx context.Context, id int64) (*time.Time, error) {
	results, err := b.owner.Store().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, ok := business.First(results)
	if !ok {
		return nil, nil
	}
	return stored.GetCreatedAt(), nil
}
