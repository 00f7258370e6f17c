package expr

import (
	"errors"
	"fmt"
)

// SyntaxError reports an expression that cannot be parsed. Raised at
// validation time, before anything runs.
type SyntaxError struct {
	Expression string
	Path       string
	Cause      error
}

func (e *SyntaxError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("expression syntax error at %q: %v (expression: %s)", e.Path, e.Cause, e.Expression)
	}
	return fmt.Sprintf("expression syntax error: %v (expression: %s)", e.Cause, e.Expression)
}

func (e *SyntaxError) Unwrap() error { return e.Cause }

// EvalError reports an expression that parsed but failed or timed out during
// evaluation. Surfaced as a run event, never process-fatal.
type EvalError struct {
	Expression string
	Path       string
	Cause      error
}

func (e *EvalError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("expression evaluation failed at %q: %v (expression: %s)", e.Path, e.Cause, e.Expression)
	}
	return fmt.Sprintf("expression evaluation failed: %v (expression: %s)", e.Cause, e.Expression)
}

func (e *EvalError) Unwrap() error { return e.Cause }

// ErrTimeout is the cause recorded on an EvalError when evaluation exceeds
// its deadline.
var ErrTimeout = errors.New("evaluation timed out")

// IsTimeout reports whether err is an evaluation timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
