// Package auditable emits activity events after records are saved or
// deleted.
//
// The acting user and tenant travel with each call in params:
//
//	activity.actor_id   string
//	activity.tenant_id  string
//	activity.channel    string (optional, overrides the emitter channel)
//	activity.verb       string (optional, replaces "update" after a save)
package auditable

import (
	"context"
	"reflect"
	"sync"
	"time"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/pkg/activity"
)

const (
	ParamActorID  = "activity.actor_id"
	ParamTenantID = "activity.tenant_id"
	ParamChannel  = "activity.channel"
	ParamVerb     = "activity.verb"
)

// Option configures the behavior.
type Option func(*options)

type options struct {
	emitter    *activity.Emitter
	objectType string
	strict     bool
	now        func() time.Time
}

// WithEmitter sets the emitter events are sent through.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(o *options) {
		o.emitter = emitter
	}
}

// WithHooks builds an enabled emitter over hooks with the default channel.
func WithHooks(hooks ...activity.ActivityHook) Option {
	return func(o *options) {
		o.emitter = activity.NewEmitter(activity.Hooks(hooks), activity.Config{Enabled: true})
	}
}

// WithObjectType overrides the object type, which defaults to the business
// name.
func WithObjectType(objectType string) Option {
	return func(o *options) {
		o.objectType = objectType
	}
}

// WithStrict makes a failed emission soft-stop the operation, so it reports
// false. By default failures are only logged.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithClock sets the time source for OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Behavior emits create, update and delete events.
type Behavior[T business.Record] struct {
	business.Base[T]
	owner *business.Business[T]
	opts  options

	mu      sync.Mutex
	creates map[any]struct{}
}

// New returns a factory attaching the behavior to a business.
func New[T business.Record](opts ...Option) business.Factory[T] {
	cfg := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return func(owner *business.Business[T]) business.Behavior[T] {
		behavior := &Behavior[T]{owner: owner, opts: cfg, creates: map[any]struct{}{}}
		if behavior.opts.objectType == "" {
			behavior.opts.objectType = owner.Name()
		}
		return behavior
	}
}

// BeforeSave remembers whether record is being created.
func (b *Behavior[T]) BeforeSave(_ context.Context, record T, _ business.Params) business.Signal {
	if business.IsNew(record) && trackable(record) {
		b.mu.Lock()
		b.creates[any(record)] = struct{}{}
		b.mu.Unlock()
	}
	return business.Continue
}

// AfterSave emits create or update. A new record that is still without an
// identity was not persisted and produces no event.
func (b *Behavior[T]) AfterSave(ctx context.Context, record T, params business.Params) business.Signal {
	created := b.takeCreate(record)
	if business.IsNew(record) {
		return business.Continue
	}
	verb := activity.VerbUpdate
	if created {
		verb = activity.VerbCreate
	} else if override, ok := params.GetString(ParamVerb); ok && override != "" {
		verb = override
	}
	return b.emit(ctx, verb, record, params)
}

// AfterDelete emits delete.
func (b *Behavior[T]) AfterDelete(ctx context.Context, record T, params business.Params) business.Signal {
	if business.IsNew(record) {
		return business.Continue
	}
	return b.emit(ctx, activity.VerbDelete, record, params)
}

func (b *Behavior[T]) emit(ctx context.Context, verb string, record T, params business.Params) business.Signal {
	if !b.opts.emitter.Enabled() {
		return business.Continue
	}

	input := activity.RecordEventInput{
		Business:   b.owner.Name(),
		ObjectType: b.opts.objectType,
		ObjectID:   *record.GetID(),
		OccurredAt: b.opts.now(),
	}
	input.ActorID, _ = params.GetString(ParamActorID)
	input.TenantID, _ = params.GetString(ParamTenantID)
	input.Channel, _ = params.GetString(ParamChannel)
	if sluggable, ok := any(record).(interface{ GetSlug() string }); ok {
		input.Slug = sluggable.GetSlug()
	}

	if err := b.opts.emitter.Emit(ctx, activity.BuildRecordEvent(verb, input)); err != nil {
		b.owner.Logger().WarnContext(ctx, "auditable: emit failed", "verb", verb, "id", input.ObjectID, "error", err)
		if b.opts.strict {
			return business.SoftStop
		}
	}
	return business.Continue
}

func (b *Behavior[T]) takeCreate(record T) bool {
	if !trackable(record) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.creates[any(record)]; !ok {
		return false
	}
	delete(b.creates, any(record))
	return true
}

func trackable(record any) bool {
	t := reflect.TypeOf(record)
	return t != nil && t.Comparable()
}
