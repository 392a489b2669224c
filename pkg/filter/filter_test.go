package filter

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/pkg/store/memory"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewExpr(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry))
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewCEL(CELWithProgramCache(cache), CELWithFunctionRegistry(registry))
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewJS(JSWithProgramCache(cache), JSWithFunctionRegistry(registry))
		},
	},
}

func forEachEvaluator(t *testing.T, fn func(t *testing.T, evaluator Evaluator)) {
	t.Helper()
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not built in", factory.name)
			}
			fn(t, evaluator)
		})
	}
}

func movieEnv() Env {
	return Env{
		Record: map[string]any{"title": "Heat", "genre": "drama", "price": 9.5},
		Args:   map[string]any{"genre": "drama", "max": 10.0},
		Now:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMatchAcrossEngines(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{expr: `price > 5.0 && genre == "drama"`, want: true},
		{expr: `genre == args.genre && price < args.max`, want: true},
		{expr: `record.title == "Alien"`, want: false},
		{expr: `title == "Heat" || price > 100.0`, want: true},
	}
	forEachEvaluator(t, func(t *testing.T, evaluator Evaluator) {
		for _, tc := range cases {
			got, err := Match(context.Background(), evaluator, tc.expr, movieEnv())
			if err != nil {
				t.Fatalf("%s: %v", tc.expr, err)
			}
			if got != tc.want {
				t.Fatalf("%s: expected %t, got %t", tc.expr, tc.want, got)
			}
		}
	})
}

func TestMatchRejectsNonBooleanResults(t *testing.T) {
	forEachEvaluator(t, func(t *testing.T, evaluator Evaluator) {
		_, err := Match(context.Background(), evaluator, "price", movieEnv())
		var evalErr *EvaluationError
		if !errors.As(err, &evalErr) {
			t.Fatalf("expected *EvaluationError, got %v", err)
		}
		if evalErr.Engine != evaluator.Engine() || evalErr.Expr != "price" {
			t.Fatalf("unexpected error metadata: %+v", evalErr)
		}
	})
}

func TestEvaluateRejectsEmptyExpression(t *testing.T) {
	forEachEvaluator(t, func(t *testing.T, evaluator Evaluator) {
		_, err := evaluator.Evaluate(context.Background(), "", movieEnv())
		if !errors.Is(err, ErrEmptyExpression) {
			t.Fatalf("expected ErrEmptyExpression, got %v", err)
		}
	})
}

func TestEvaluateHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	forEachEvaluator(t, func(t *testing.T, evaluator Evaluator) {
		_, err := evaluator.Evaluate(ctx, "true", movieEnv())
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestExprFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry().MustRegister("upper", func(args ...any) (any, error) {
		return strings.ToUpper(args[0].(string)), nil
	})
	evaluator := NewExpr(ExprWithFunctionRegistry(registry))

	for _, expr := range []string{`upper(title) == "HEAT"`, `call("upper", title) == "HEAT"`} {
		ok, err := Match(context.Background(), evaluator, expr, movieEnv())
		if err != nil || !ok {
			t.Fatalf("%s: expected match, got ok=%t err=%v", expr, ok, err)
		}
	}
}

func TestCELFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry().MustRegister("upper", func(args ...any) (any, error) {
		return strings.ToUpper(args[0].(string)), nil
	})
	evaluator := NewCEL(CELWithFunctionRegistry(registry))

	ok, err := Match(context.Background(), evaluator, `call("upper", [title]) == "HEAT"`, movieEnv())
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%t err=%v", ok, err)
	}
}

func TestFunctionRegistryRejectsDuplicates(t *testing.T) {
	registry := NewFunctionRegistry()
	fn := func(...any) (any, error) { return nil, nil }
	if err := registry.Register("Upper", fn); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("upper", fn); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register("", fn); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected unknown function to fail")
	}
	if names := registry.Names(); !slices.Equal(names, []string{"upper"}) {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestProgramCacheStoresCompiledPrograms(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := NewProgramCache(8)
			evaluator := factory.new(cache, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not built in", factory.name)
			}
			for range 2 {
				if _, err := Match(context.Background(), evaluator, "price > 1.0", movieEnv()); err != nil {
					t.Fatalf("match: %v", err)
				}
			}
			if got := cache.(*lruCache).cache.Len(); got != 1 {
				t.Fatalf("expected one cached program, got %d", got)
			}
		})
	}
}

type movie struct {
	business.Model
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

func newMovies(t *testing.T, evaluator Evaluator) *business.Business[*movie] {
	t.Helper()
	b, err := business.New[*movie](memory.New[*movie]("movies"), business.WithBehavior(New[*movie](evaluator)))
	if err != nil {
		t.Fatalf("new business: %v", err)
	}
	for _, m := range []*movie{{Title: "Heat", Price: 9.5}, {Title: "Alien", Price: 3}, {Title: "Brazil", Price: 12}} {
		if _, err := b.Save(context.Background(), m, nil); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	return b
}

func TestWhereVariant(t *testing.T) {
	b := newMovies(t, NewExpr())
	ctx := context.Background()

	got, err := b.FindAll(ctx, DefaultVariant, WhereParams("price > args.min", map[string]any{"min": 5.0}))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	var titles []string
	for _, m := range got {
		titles = append(titles, m.Title)
	}
	if !slices.Equal(titles, []string{"Heat", "Brazil"}) {
		t.Fatalf("unexpected titles: %v", titles)
	}

	none, err := b.FindAll(ctx, DefaultVariant, nil)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no records without expression, got %v err=%v", none, err)
	}
}

func TestWhereVariantSurfacesEvaluationErrors(t *testing.T) {
	b := newMovies(t, NewExpr())

	_, err := b.FindAll(context.Background(), DefaultVariant, WhereParams("title", nil))
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected *EvaluationError, got %v", err)
	}
	if !errors.Is(err, business.ErrStorage) {
		t.Fatalf("expected variant failure to surface through the business, got %v", err)
	}
}

func TestNoVariantWithoutEvaluator(t *testing.T) {
	b := newMovies(t, nil)
	if slices.Contains(b.Variants(), DefaultVariant) {
		t.Fatalf("expected no where variant without evaluator")
	}
}

func TestWherePredicateInQuery(t *testing.T) {
	b := newMovies(t, NewCEL())
	ctx := context.Background()

	pred := Where[*movie](ctx, NewCEL(), `price < 10.0`, nil)
	got, err := b.FindAll(ctx, "all", business.Params{"query": business.Query[*movie]{Where: pred.Match}})
	if err != nil || pred.Err() != nil {
		t.Fatalf("find: err=%v predicate=%v", err, pred.Err())
	}
	if len(got) != 2 {
		t.Fatalf("expected two cheap movies, got %d", len(got))
	}

	broken := Where[*movie](ctx, NewCEL(), `missing_field > 1`, nil)
	got, _ = b.FindAll(ctx, "all", business.Params{"query": business.Query[*movie]{Where: broken.Match}})
	if len(got) != 0 || broken.Err() == nil {
		t.Fatalf("expected failing predicate to match nothing and keep its error")
	}
}
