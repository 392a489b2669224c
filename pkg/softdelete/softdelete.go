// Package softdelete replaces physical deletion with a deletion timestamp and
// hides deleted records from finds.
//
// Behavior is controlled per call through params:
//
//	soft-deletable.disable  bool   delete physically
//	soft-deletable.mode     string not-deleted (default), only-deleted or all
package softdelete

import (
	"context"
	"iter"
	"time"

	business "github.com/goliatone/go-business"
)

const (
	ParamDisable = "soft-deletable.disable"
	ParamMode    = "soft-deletable.mode"
)

// Mode selects which records a find returns.
type Mode string

const (
	ModeNotDeleted  Mode = "not-deleted"
	ModeOnlyDeleted Mode = "only-deleted"
	ModeAll         Mode = "all"
)

// SoftDeletable is implemented by records carrying a deletion timestamp.
type SoftDeletable interface {
	GetDeletedAt() *time.Time
	SetDeletedAt(at *time.Time)
}

// Record is the constraint on records the behavior manages.
type Record interface {
	business.Record
	SoftDeletable
}

// DeletedAtField is an embeddable SoftDeletable implementation.
type DeletedAtField struct {
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (f *DeletedAtField) GetDeletedAt() *time.Time {
	if f == nil {
		return nil
	}
	return f.DeletedAt
}

func (f *DeletedAtField) SetDeletedAt(at *time.Time) {
	f.DeletedAt = at
}

// IsDeleted reports whether record carries a deletion timestamp.
func IsDeleted(record SoftDeletable) bool {
	return record.GetDeletedAt() != nil
}

// Option configures the behavior.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the time source used for deletion timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Behavior intercepts deletes and finds.
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

// From returns the soft delete behavior attached to owner.
func From[T Record](owner *business.Business[T]) (*Behavior[T], bool) {
	for _, behavior := range owner.Behaviors() {
		if b, ok := behavior.(*Behavior[T]); ok {
			return b, true
		}
	}
	return nil, false
}

// ModeFrom reads the find mode from params, defaulting to ModeNotDeleted.
func ModeFrom(params business.Params) Mode {
	mode, ok := params.GetString(ParamMode)
	if !ok || mode == "" {
		return ModeNotDeleted
	}
	return Mode(mode)
}

// BeforeDelete stamps the record and saves it through the business, then
// soft-stops so the physical removal is skipped. The delete therefore reports
// false. When the stamp cannot be saved the delete is aborted.
func (b *Behavior[T]) BeforeDelete(ctx context.Context, record T, params business.Params) business.Signal {
	if disabled, _ := params.GetBool(ParamDisable); disabled {
		return business.Continue
	}

	previous := record.GetDeletedAt()
	now := b.now()
	record.SetDeletedAt(&now)

	ok, err := b.owner.Save(ctx, record, params)
	if err != nil || !ok {
		record.SetDeletedAt(previous)
		b.owner.Logger().WarnContext(ctx, "softdelete: mark deleted", "ok", ok, "error", err)
		return business.Abort
	}
	return business.SoftStop
}

// AfterFind filters results by the requested mode. Unknown modes return
// everything.
func (b *Behavior[T]) AfterFind(_ context.Context, _ string, params business.Params, results iter.Seq[T]) iter.Seq[T] {
	switch ModeFrom(params) {
	case ModeNotDeleted:
		return business.Filter(results, func(record T) bool { return !IsDeleted(record) })
	case ModeOnlyDeleted:
		return business.Filter(results, func(record T) bool { return IsDeleted(record) })
	default:
		return results
	}
}

// ForceDelete removes record physically.
func (b *Behavior[T]) ForceDelete(ctx context.Context, record T, params business.Params) (bool, error) {
	params = business.SetDeep(params.Clone(), ParamDisable, true)
	return b.owner.Delete(ctx, record, params)
}

// ForceDeleteByID finds the record whatever its deletion state and removes
// it physically. A missing record reports false.
func (b *Behavior[T]) ForceDeleteByID(ctx context.Context, id int64, params business.Params) (bool, error) {
	params = business.SetDeep(params.Clone(), ParamMode, string(ModeAll))
	record, found, err := b.owner.FindByID(ctx, id, params)
	if err != nil || !found {
		return false, err
	}
	return b.ForceDelete(ctx, record, params)
}

// Restore clears the deletion timestamp and saves the record.
func (b *Behavior[T]) Restore(ctx context.Context, record T, params business.Params) (bool, error) {
	record.SetDeletedAt(nil)
	return b.owner.Save(ctx, record, params)
}

// RestoreByID finds a deleted record and restores it.
func (b *Behavior[T]) RestoreByID(ctx context.Context, id int64, params business.Params) (bool, error) {
	params = business.SetDeep(params.Clone(), ParamMode, string(ModeOnlyDeleted))
	record, found, err := b.owner.FindByID(ctx, id, params)
	if err != nil || !found {
		return false, err
	}
	return b.Restore(ctx, record, params)
}
