// Package filter evaluates boolean expressions against records. It backs the
// "where" query variant and predicates usable in business.Query.
//
// Three engines are available: expr-lang/expr (NewExpr), cel-go (NewCEL) and
// goja JavaScript (NewJS, only with the js_eval build tag). Every engine sees
// the same variables:
//
//	now     time.Time of the evaluation
//	args    map of caller supplied arguments
//	record  the record as its JSON object
//
// Top-level record fields are also exposed directly ("price > 10") unless
// they clash with the names above.
package filter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyExpression is returned when an expression is blank.
var ErrEmptyExpression = errors.New("filter: expression must not be empty")

// Env holds the variables an expression is evaluated against.
type Env struct {
	Record map[string]any
	Args   map[string]any
	Now    time.Time
}

var reserved = map[string]bool{"now": true, "args": true, "record": true, "call": true}

func (e Env) withDefaults() Env {
	if e.Now.IsZero() {
		e.Now = time.Now()
	}
	if e.Args == nil {
		e.Args = map[string]any{}
	}
	if e.Record == nil {
		e.Record = map[string]any{}
	}
	return e
}

// variables flattens env into the name/value map handed to engines.
func (e Env) variables() map[string]any {
	vars := map[string]any{
		"now":    e.Now,
		"args":   e.Args,
		"record": e.Record,
	}
	for key, value := range e.Record {
		if !reserved[key] {
			vars[key] = value
		}
	}
	return vars
}

// Evaluator runs an expression and returns its result.
type Evaluator interface {
	Engine() string
	Evaluate(ctx context.Context, expression string, env Env) (any, error)
}

// Match evaluates expression and requires a boolean result.
func Match(ctx context.Context, evaluator Evaluator, expression string, env Env) (bool, error) {
	if evaluator == nil {
		return false, errors.New("filter: evaluator is nil")
	}
	result, err := evaluator.Evaluate(ctx, expression, env)
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, wrapEvaluationError(evaluator.Engine(), expression, fmt.Errorf("result is %T, not bool", result))
	}
	return matched, nil
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("filter: %s evaluator %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluationError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Err:    err,
	}
}

// prepare validates the call before any engine work.
func prepare(ctx context.Context, engine, expression string, env Env) (Env, error) {
	if expression == "" {
		return env, wrapEvaluationError(engine, expression, ErrEmptyExpression)
	}
	if err := ctx.Err(); err != nil {
		return env, wrapEvaluationError(engine, expression, err)
	}
	return env.withDefaults(), nil
}
