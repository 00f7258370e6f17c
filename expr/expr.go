package expr

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
)

// DefaultTimeout bounds a single expression evaluation.
const DefaultTimeout = 100 * time.Millisecond

// pathPattern matches a bare dotted selection path: identifiers separated by
// dots, each optionally followed by numeric indexes.
var pathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\[[0-9]+\])*(\.[A-Za-z_][A-Za-z0-9_]*(\[[0-9]+\])*)*$`)

// IsPath reports whether expression is a bare selection path rather than a
// computed expression.
func IsPath(expression string) bool {
	return pathPattern.MatchString(strings.TrimSpace(expression))
}

// Check verifies that expression parses, without evaluating anything. Used
// by node validation so configuration errors surface before a run.
func Check(expression string) error {
	return CheckAt(expression, "")
}

// CheckAt is Check with a dotted metadata field path attached to any error.
func CheckAt(expression, fieldPath string) error {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return &SyntaxError{Expression: expression, Path: fieldPath, Cause: fmt.Errorf("expression is empty")}
	}
	if IsPath(trimmed) {
		return nil
	}
	if _, err := govaluate.NewEvaluableExpression(trimmed); err != nil {
		return &SyntaxError{Expression: expression, Path: fieldPath, Cause: err}
	}
	return nil
}

// Evaluate runs expression against env, bounded by timeout (DefaultTimeout
// when timeout <= 0). The evaluation itself runs on a separate goroutine;
// when the deadline or ctx expires the caller stops waiting and receives an
// EvalError with ErrTimeout as its cause.
func Evaluate(ctx context.Context, expression string, env *Env, timeout time.Duration) (any, error) {
	return EvaluateAt(ctx, expression, env, "", timeout)
}

// EvaluateAt is Evaluate with a dotted metadata field path attached to any
// error.
func EvaluateAt(ctx context.Context, expression string, env *Env, fieldPath string, timeout time.Duration) (any, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, &EvalError{Expression: expression, Path: fieldPath, Cause: fmt.Errorf("expression is empty")}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		value, err := evaluate(trimmed, env)
		done <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, &EvalError{Expression: expression, Path: fieldPath, Cause: out.err}
		}
		return out.value, nil
	case <-timer.C:
		return nil, &EvalError{Expression: expression, Path: fieldPath, Cause: ErrTimeout}
	case <-ctx.Done():
		return nil, &EvalError{Expression: expression, Path: fieldPath, Cause: ctx.Err()}
	}
}

func evaluate(expression string, env *Env) (any, error) {
	if IsPath(expression) {
		return env.Resolve(expression)
	}

	parsed, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, err
	}
	return parsed.Eval(envParameters{env: env})
}

// envParameters adapts Env to govaluate's parameter lookup. Bracket-escaped
// names arrive whole ("input.user.age") and are resolved as paths; plain
// identifiers resolve to a root.
type envParameters struct {
	env *Env
}

func (p envParameters) Get(name string) (any, error) {
	value, err := p.env.Resolve(name)
	if err != nil {
		return nil, err
	}
	// govaluate arithmetic only understands float64.
	switch n := value.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	}
	return value, nil
}
