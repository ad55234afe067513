// internal/celeval/celeval.go
package celeval

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/solatis/overseer/internal/types"
)

/*
 * Custom condition evaluators written as CEL expressions.
 *
 * A rule-set file names an evaluator and gives its expression; conditions
 * with operator "custom" then refer to it by name. Expressions see three
 * variables:
 *
 *   ctx    the evaluation context (including ctx.action)
 *   field  the condition's field path, a string
 *   value  the condition's value, any type
 *
 * and must produce a bool, for example:
 *
 *   ctx.action.type == "shell_exec" && ctx.action.params.command.contains(value)
 */

// costLimit bounds the work one evaluation may perform.
const costLimit = 10000

// Evaluator is a compiled CEL expression. Safe for concurrent use.
type Evaluator struct {
	expr string
	prg  cel.Program
}

// newEnv declares the variables visible to expressions.
func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("field", cel.StringType),
		cel.Variable("value", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// Compile parses and checks expr.
func Compile(expr string) (*Evaluator, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Evaluator{expr: expr, prg: prg}, nil
}

// Expression returns the source expression.
func (e *Evaluator) Expression() string {
	return e.expr
}

// Evaluate runs the expression for one condition. Missing context keys
// surface as evaluation errors, which the rules engine counts as non-match.
func (e *Evaluator) Evaluate(data types.Context, cond types.Condition) (bool, error) {
	ctx := map[string]any(data)
	if ctx == nil {
		ctx = map[string]any{}
	}
	out, _, err := e.prg.Eval(map[string]any{
		"ctx":   ctx,
		"field": cond.Field,
		"value": cond.Value,
	})
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", e.expr, err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q produced %T", types.ErrNonBooleanResult, e.expr, out.Value())
	}
	return val, nil
}
