package filter

import (
	"context"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// CELOption configures the CEL evaluator.
type CELOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Registered functions are reachable through call("name", [args...]).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCEL constructs an Evaluator backed by cel-go.
//
// CEL declares variables at compile time, so programs are cached per
// expression and set of top-level record fields. Optional fields that may be
// missing from a record are best reached through record, e.g.
// has(record.deleted_at).
func NewCEL(opts ...CELOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Engine() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx context.Context, expression string, env Env) (any, error) {
	env, err := prepare(ctx, e.Engine(), expression, env)
	if err != nil {
		return nil, err
	}
	vars := env.variables()
	program, err := e.loadOrCompile(expression, vars)
	if err != nil {
		return nil, wrapEvaluationError(e.Engine(), expression, err)
	}
	out, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return nil, wrapEvaluationError(e.Engine(), expression, err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) loadOrCompile(expression string, vars map[string]any) (celgo.Program, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	key := "cel:" + strings.Join(names, ",") + ":" + expression

	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(names)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv(names []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.CrossTypeNumericComparisons(true),
	}
	for _, name := range names {
		switch name {
		case "now":
			opts = append(opts, celgo.Variable(name, celgo.TimestampType))
		case "args", "record":
			opts = append(opts, celgo.Variable(name, celgo.MapType(celgo.StringType, celgo.DynType)))
		default:
			opts = append(opts, celgo.Variable(name, celgo.DynType))
		}
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_dyn",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.callBinding()),
			),
		))
	}
	return celgo.NewEnv(opts...)
}

// callBinding backs call("name", [args...]).
func (e *celEvaluator) callBinding() functions.BinaryOp {
	return func(nameVal, argsVal ref.Val) ref.Val {
		name, ok := nameVal.Value().(string)
		if !ok {
			return types.NewErr("filter: call name must be string")
		}
		list, ok := argsVal.(traits.Lister)
		if !ok {
			return types.NewErr("filter: call arguments must be a list")
		}
		size, _ := list.Size().Value().(int64)
		args := make([]any, 0, size)
		for i := int64(0); i < size; i++ {
			args = append(args, list.Get(types.Int(i)).Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
