package business_test

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"testing"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/pkg/store/memory"
)

type movie struct {
	business.Model
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// recorder logs every callback it receives and answers with the configured
// signals.
type recorder struct {
	business.Base[*movie]
	name         string
	log          *[]string
	beforeSave   business.Signal
	afterSave    business.Signal
	beforeDelete business.Signal
	afterDelete  business.Signal
	keep         func(*movie) bool
	variants     []business.Variant[*movie]
}

func (r *recorder) record(event string) {
	*r.log = append(*r.log, r.name+"."+event)
}

func (r *recorder) BeforeFind(_ context.Context, name string, _ business.Params) {
	r.record("before-find:" + name)
}

func (r *recorder) AfterFind(_ context.Context, name string, _ business.Params, results iter.Seq[*movie]) iter.Seq[*movie] {
	r.record("after-find:" + name)
	if r.keep == nil {
		return results
	}
	return business.Filter(results, r.keep)
}

func (r *recorder) BeforeSave(context.Context, *movie, business.Params) business.Signal {
	r.record("before-save")
	return r.beforeSave
}

func (r *recorder) AfterSave(context.Context, *movie, business.Params) business.Signal {
	r.record("after-save")
	return r.afterSave
}

func (r *recorder) BeforeDelete(context.Context, *movie, business.Params) business.Signal {
	r.record("before-delete")
	return r.beforeDelete
}

func (r *recorder) AfterDelete(context.Context, *movie, business.Params) business.Signal {
	r.record("after-delete")
	return r.afterDelete
}

func (r *recorder) Variants() []business.Variant[*movie] {
	return r.variants
}

func attach(r *recorder) business.Factory[*movie] {
	return func(*business.Business[*movie]) business.Behavior[*movie] {
		return r
	}
}

func newBusiness(t *testing.T, store business.Store[*movie], opts ...business.Option[*movie]) *business.Business[*movie] {
	t.Helper()
	b, err := business.New[*movie](store, opts...)
	if err != nil {
		t.Fatalf("new business: %v", err)
	}
	return b
}

var errBoom = errors.New("boom")

type failingStore struct {
	*memory.Store[*movie]
	failInsert bool
	failRemove bool
	failAll    bool
}

func (s *failingStore) Insert(ctx context.Context, record *movie) error {
	if s.failInsert {
		return errBoom
	}
	return s.Store.Insert(ctx, record)
}

func (s *failingStore) Remove(ctx context.Context, record *movie) error {
	if s.failRemove {
		return errBoom
	}
	return s.Store.Remove(ctx, record)
}

func (s *failingStore) All(ctx context.Context) (iter.Seq[*movie], error) {
	if s.failAll {
		return nil, errBoom
	}
	return s.Store.All(ctx)
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := business.New[*movie](nil); !errors.Is(err, business.ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
}

func TestNewDefaultsNameAndBuiltInVariants(t *testing.T) {
	b := newBusiness(t, memory.New[*movie]("movies"))
	if b.Name() != "movie" {
		t.Fatalf("expected default name movie, got %q", b.Name())
	}
	if got := b.Variants(); !slices.Equal(got, []string{"all", "id"}) {
		t.Fatalf("unexpected variants: %v", got)
	}
}

func TestSaveRunsChainsInAttachmentOrder(t *testing.T) {
	var log []string
	store := memory.New[*movie]("movies")
	b := newBusiness(t, store, business.WithBehaviors(
		attach(&recorder{name: "b1", log: &log}),
		attach(&recorder{name: "b2", log: &log}),
	))

	m := &movie{Title: "Heat"}
	ok, err := b.Save(context.Background(), m, nil)
	if err != nil || !ok {
		t.Fatalf("expected successful save, got ok=%t err=%v", ok, err)
	}
	want := []string{"b1.before-save", "b2.before-save", "b1.after-save", "b2.after-save"}
	if !slices.Equal(log, want) {
		t.Fatalf("unexpected chain order:\nwant %v\ngot  %v", want, log)
	}
	if m.GetID() == nil || store.Len() != 1 {
		t.Fatalf("expected record persisted with id, got id=%v len=%d", m.GetID(), store.Len())
	}
}

func TestSaveUpdatesExistingRecord(t *testing.T) {
	store := memory.New[*movie]("movies")
	b := newBusiness(t, store)
	ctx := context.Background()

	m := &movie{Title: "Heat"}
	if ok, err := b.Save(ctx, m, nil); !ok || err != nil {
		t.Fatalf("insert: ok=%t err=%v", ok, err)
	}
	m.Price = 12
	if ok, err := b.Save(ctx, m, nil); !ok || err != nil {
		t.Fatalf("update: ok=%t err=%v", ok, err)
	}

	got, found, err := b.FindByID(ctx, *m.GetID(), nil)
	if err != nil || !found {
		t.Fatalf("find by id: found=%t err=%v", found, err)
	}
	if got.Price != 12 || store.Len() != 1 {
		t.Fatalf("expected single updated record, got %+v (len %d)", got, store.Len())
	}
}

func TestSaveSignals(t *testing.T) {
	cases := []struct {
		name      string
		first     recorder
		expectOK  bool
		persisted bool
		log       []string
	}{
		{
			name:      "abort in before chain stops at once",
			first:     recorder{beforeSave: business.Abort},
			expectOK:  false,
			persisted: false,
			log:       []string{"b1.before-save"},
		},
		{
			name:      "soft stop in before chain skips persistence only",
			first:     recorder{beforeSave: business.SoftStop},
			expectOK:  false,
			persisted: false,
			log:       []string{"b1.before-save", "b2.before-save", "b1.after-save", "b2.after-save"},
		},
		{
			name:      "soft stop in after chain keeps the write",
			first:     recorder{afterSave: business.SoftStop},
			expectOK:  false,
			persisted: true,
			log:       []string{"b1.before-save", "b2.before-save", "b1.after-save", "b2.after-save"},
		},
		{
			name:      "abort in after chain keeps the write",
			first:     recorder{afterSave: business.Abort},
			expectOK:  false,
			persisted: true,
			log:       []string{"b1.before-save", "b2.before-save", "b1.after-save"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var log []string
			first := tc.first
			first.name, first.log = "b1", &log
			store := memory.New[*movie]("movies")
			b := newBusiness(t, store, business.WithBehaviors(
				attach(&first),
				attach(&recorder{name: "b2", log: &log}),
			))

			ok, err := b.Save(context.Background(), &movie{Title: "Heat"}, nil)
			if err != nil {
				t.Fatalf("interceptor outcomes must not surface as errors: %v", err)
			}
			if ok != tc.expectOK {
				t.Fatalf("expected ok=%t, got %t", tc.expectOK, ok)
			}
			if persisted := store.Len() == 1; persisted != tc.persisted {
				t.Fatalf("expected persisted=%t, got %t", tc.persisted, persisted)
			}
			if !slices.Equal(log, tc.log) {
				t.Fatalf("unexpected log:\nwant %v\ngot  %v", tc.log, log)
			}
		})
	}
}

func TestSaveStorageFailureSkipsAfterChain(t *testing.T) {
	var log []string
	store := &failingStore{Store: memory.New[*movie]("movies"), failInsert: true}
	b := newBusiness(t, store, business.WithBehavior(attach(&recorder{name: "b1", log: &log})))

	ok, err := b.Save(context.Background(), &movie{Title: "Heat"}, nil)
	if ok {
		t.Fatalf("expected failed save")
	}
	if !errors.Is(err, business.ErrStorage) || !errors.Is(err, errBoom) {
		t.Fatalf("expected storage error wrapping cause, got %v", err)
	}
	var storageErr *business.StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != "save" {
		t.Fatalf("expected *StorageError for save, got %#v", err)
	}
	if !slices.Equal(log, []string{"b1.before-save"}) {
		t.Fatalf("after-save must not run on storage failure, got %v", log)
	}
}

func TestDeleteSignals(t *testing.T) {
	cases := []struct {
		name     string
		first    recorder
		expectOK bool
		removed  bool
		log      []string
	}{
		{
			name:     "continue removes the record",
			expectOK: true,
			removed:  true,
			log:      []string{"b1.before-delete", "b2.before-delete", "b1.after-delete", "b2.after-delete"},
		},
		{
			name:     "abort in before chain stops at once",
			first:    recorder{beforeDelete: business.Abort},
			expectOK: false,
			removed:  false,
			log:      []string{"b1.before-delete"},
		},
		{
			name:     "soft stop in before chain keeps the record",
			first:    recorder{beforeDelete: business.SoftStop},
			expectOK: false,
			removed:  false,
			log:      []string{"b1.before-delete", "b2.before-delete", "b1.after-delete", "b2.after-delete"},
		},
		{
			name:     "soft stop in after chain keeps the removal",
			first:    recorder{afterDelete: business.SoftStop},
			expectOK: false,
			removed:  true,
			log:      []string{"b1.before-delete", "b2.before-delete", "b1.after-delete", "b2.after-delete"},
		},
		{
			name:     "abort in after chain keeps the removal",
			first:    recorder{afterDelete: business.Abort},
			expectOK: false,
			removed:  true,
			log:      []string{"b1.before-delete", "b2.before-delete", "b1.after-delete"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			var log []string
			first := tc.first
			first.name, first.log = "b1", &log
			store := memory.New[*movie]("movies")
			b := newBusiness(t, store, business.WithBehaviors(
				attach(&first),
				attach(&recorder{name: "b2", log: &log}),
			))

			m := &movie{Title: "Heat"}
			if ok, err := b.Save(ctx, m, nil); !ok || err != nil {
				t.Fatalf("save: ok=%t err=%v", ok, err)
			}
			log = nil

			ok, err := b.Delete(ctx, m, nil)
			if err != nil {
				t.Fatalf("interceptor outcomes must not surface as errors: %v", err)
			}
			if ok != tc.expectOK {
				t.Fatalf("expected ok=%t, got %t", tc.expectOK, ok)
			}
			if removed := store.Len() == 0; removed != tc.removed {
				t.Fatalf("expected removed=%t, got %t", tc.removed, removed)
			}
			if !slices.Equal(log, tc.log) {
				t.Fatalf("unexpected log:\nwant %v\ngot  %v", tc.log, log)
			}
		})
	}
}

func TestDeleteStorageFailureSkipsAfterChain(t *testing.T) {
	ctx := context.Background()
	var log []string
	store := &failingStore{Store: memory.New[*movie]("movies")}
	b := newBusiness(t, store, business.WithBehavior(attach(&recorder{name: "b1", log: &log})))

	m := &movie{Title: "Heat"}
	if ok, err := b.Save(ctx, m, nil); !ok || err != nil {
		t.Fatalf("save: ok=%t err=%v", ok, err)
	}
	log = nil
	store.failRemove = true

	ok, err := b.Delete(ctx, m, nil)
	if ok {
		t.Fatalf("expected failed delete")
	}
	if !errors.Is(err, business.ErrStorage) || !errors.Is(err, errBoom) {
		t.Fatalf("expected storage error wrapping cause, got %v", err)
	}
	var storageErr *business.StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != "delete" {
		t.Fatalf("expected *StorageError for delete, got %#v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected record kept, got %d", store.Len())
	}
	if !slices.Equal(log, []string{"b1.before-delete"}) {
		t.Fatalf("after-delete must not run on storage failure, got %v", log)
	}
}

func TestDeleteByIDNotFoundSkipsInterceptors(t *testing.T) {
	var log []string
	b := newBusiness(t, memory.New[*movie]("movies"), business.WithBehavior(attach(&recorder{name: "b1", log: &log})))

	ok, err := b.DeleteByID(context.Background(), 42, nil)
	if err != nil || ok {
		t.Fatalf("expected (false, nil), got ok=%t err=%v", ok, err)
	}
	for _, entry := range log {
		if strings.Contains(entry, "delete") {
			t.Fatalf("delete interceptors must not run, got %v", log)
		}
	}
}

func TestDeleteByIDRemovesRecord(t *testing.T) {
	store := memory.New[*movie]("movies")
	b := newBusiness(t, store)
	ctx := context.Background()
	m := &movie{Title: "Heat"}
	if _, err := b.Save(ctx, m, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	ok, err := b.DeleteByID(ctx, *m.GetID(), nil)
	if err != nil || !ok {
		t.Fatalf("expected delete by id, got ok=%t err=%v", ok, err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestFindUnknownVariant(t *testing.T) {
	var log []string
	b := newBusiness(t, memory.New[*movie]("movies"), business.WithBehavior(attach(&recorder{name: "b1", log: &log})))

	_, err := b.Find(context.Background(), "missing", nil)
	if !errors.Is(err, business.ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
	var unknown *business.UnknownVariantError
	if !errors.As(err, &unknown) || unknown.Name != "missing" {
		t.Fatalf("expected *UnknownVariantError naming the variant, got %#v", err)
	}
	if !slices.Equal(log, []string{"b1.before-find:missing"}) {
		t.Fatalf("expected only before-find to run, got %v", log)
	}
}

func TestFindOnEmptyStore(t *testing.T) {
	b := newBusiness(t, memory.New[*movie]("movies"))
	ctx := context.Background()

	results, err := b.Find(ctx, "id", business.Params{"id": 7})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got := slices.Collect(results); len(got) != 0 {
		t.Fatalf("expected no records, got %v", got)
	}
	if _, found, err := b.FindFirst(ctx, "id", business.Params{"id": 7}); err != nil || found {
		t.Fatalf("expected none, got found=%t err=%v", found, err)
	}
}

func TestFindVariantErrorIsStorageError(t *testing.T) {
	store := &failingStore{Store: memory.New[*movie]("movies"), failAll: true}
	b := newBusiness(t, store)
	if _, err := b.Find(context.Background(), "all", nil); !errors.Is(err, business.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestFindAllAppliesQuery(t *testing.T) {
	b := newBusiness(t, memory.New[*movie]("movies"))
	ctx := context.Background()
	for _, m := range []*movie{{Title: "Heat", Price: 9}, {Title: "Alien", Price: 3}, {Title: "Brazil", Price: 12}} {
		if _, err := b.Save(ctx, m, nil); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	query := business.Query[*movie]{
		Where:   func(m *movie) bool { return m.Price > 5 },
		OrderBy: func(a, b *movie) int { return strings.Compare(a.Title, b.Title) },
	}
	got, err := b.FindAll(ctx, "all", business.Params{"query": query})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	titles := make([]string, 0, len(got))
	for _, m := range got {
		titles = append(titles, m.Title)
	}
	if !slices.Equal(titles, []string{"Brazil", "Heat"}) {
		t.Fatalf("unexpected titles: %v", titles)
	}
}

func TestAfterFindThreadsResults(t *testing.T) {
	var log []string
	b := newBusiness(t, memory.New[*movie]("movies"), business.WithBehaviors(
		attach(&recorder{name: "b1", log: &log, keep: func(m *movie) bool { return m.Price > 1 }}),
		attach(&recorder{name: "b2", log: &log, keep: func(m *movie) bool { return m.Price < 10 }}),
	))
	ctx := context.Background()
	for _, price := range []float64{0, 5, 20} {
		if _, err := b.Save(ctx, &movie{Title: "m", Price: price}, nil); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	log = nil
	got, err := b.FindAll(ctx, "all", nil)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(got) != 1 || got[0].Price != 5 {
		t.Fatalf("expected both filters applied, got %+v", got)
	}
	want := []string{"b1.before-find:all", "b2.before-find:all", "b1.after-find:all", "b2.after-find:all"}
	if !slices.Equal(log, want) {
		t.Fatalf("unexpected log:\nwant %v\ngot  %v", want, log)
	}
}

func TestVariantRegistrationFirstWins(t *testing.T) {
	var log []string
	only := func(title string) business.VariantFunc[*movie] {
		return func(context.Context, business.Params) (iter.Seq[*movie], error) {
			return slices.Values([]*movie{{Title: title}}), nil
		}
	}
	b := newBusiness(t, memory.New[*movie]("movies"),
		business.WithVariant("all", only("business")),
		business.WithBehaviors(
			attach(&recorder{name: "b1", log: &log, variants: []business.Variant[*movie]{
				{Name: "all", Find: only("b1")},
				{Name: "featured", Find: only("b1")},
			}}),
			attach(&recorder{name: "b2", log: &log, variants: []business.Variant[*movie]{
				{Name: "featured", Find: only("b2")},
			}}),
		),
	)
	ctx := context.Background()

	for variant, want := range map[string]string{"all": "business", "featured": "b1"} {
		got, found, err := b.FindFirst(ctx, variant, nil)
		if err != nil || !found {
			t.Fatalf("%s: found=%t err=%v", variant, found, err)
		}
		if got.Title != want {
			t.Fatalf("%s: expected %q to win, got %q", variant, want, got.Title)
		}
	}
	if names := b.Variants(); !slices.Equal(names, []string{"all", "featured", "id"}) {
		t.Fatalf("unexpected variants: %v", names)
	}
}

func TestDefaultParamsMergeUnderCallerParams(t *testing.T) {
	var seen business.Params
	capture := func(*business.Business[*movie]) business.Behavior[*movie] {
		return &paramsSpy{seen: &seen}
	}
	b := newBusiness(t, memory.New[*movie]("movies"),
		business.WithDefaultParams[*movie](business.Params{"limits": business.Params{"max": 10, "min": 1}}),
		business.WithBehavior(capture),
	)

	caller := business.SetDeep(nil, "limits.max", 3)
	if _, err := b.Find(context.Background(), "all", caller); err != nil {
		t.Fatalf("find: %v", err)
	}
	if v, _ := seen.GetInt64("limits.max"); v != 3 {
		t.Fatalf("caller value must win, got %v", v)
	}
	if v, _ := seen.GetInt64("limits.min"); v != 1 {
		t.Fatalf("default value must fill in, got %v", v)
	}
}

func TestFindByIDLeavesCallerParamsUntouched(t *testing.T) {
	b := newBusiness(t, memory.New[*movie]("movies"))
	params := business.Params{"tenant": "acme"}
	if _, _, err := b.FindByID(context.Background(), 1, params); err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if _, ok := params.Get("id"); ok {
		t.Fatalf("caller params mutated: %v", params)
	}
}

type paramsSpy struct {
	business.Base[*movie]
	seen *business.Params
}

func (s *paramsSpy) BeforeFind(_ context.Context, _ string, params business.Params) {
	*s.seen = params
}
