package expr

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testEnv() *Env {
	return NewEnv(map[string]any{
		"user": map[string]any{
			"name": "ada",
			"age":  36,
		},
		"items": []any{
			map[string]any{"sku": "a-1", "qty": 2},
			map[string]any{"sku": "b-2", "qty": 5},
		},
		"total": 7.5,
	})
}

func TestIsPath(t *testing.T) {
	tests := []struct {
		expression string
		want       bool
	}{
		{"input", true},
		{"input.items", true},
		{"input.items[0].sku", true},
		{"input.items[0][1]", true},
		{"[input.user.age] > 18", false},
		{"1 + 2", false},
		{"input.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsPath(tt.expression); got != tt.want {
			t.Errorf("IsPath(%q) = %v, want %v", tt.expression, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	if err := Check("input.items[0].sku"); err != nil {
		t.Fatalf("path should parse: %v", err)
	}
	if err := Check("[input.user.age] > 18"); err != nil {
		t.Fatalf("expression should parse: %v", err)
	}
	if err := Check("1 +* 2"); err == nil {
		t.Fatal("expected syntax error")
	}
	var syntaxErr *SyntaxError
	err := CheckAt("", "metadata.predicate")
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
	if syntaxErr.Path != "metadata.predicate" {
		t.Fatalf("expected field path on error, got %q", syntaxErr.Path)
	}
}

func TestEvaluate_Path(t *testing.T) {
	env := testEnv()

	got, err := Evaluate(context.Background(), "input.items[1].sku", env, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "b-2" {
		t.Fatalf("expected b-2, got %v", got)
	}
}

func TestEvaluate_MissingKeyIsNil(t *testing.T) {
	got, err := Evaluate(context.Background(), "input.nope.deeper", testEnv(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestEvaluate_UnknownRoot(t *testing.T) {
	_, err := Evaluate(context.Background(), "bogus.field", testEnv(), 0)
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvalError, got %v", err)
	}
}

func TestEvaluate_Predicate(t *testing.T) {
	env := testEnv()

	got, err := Evaluate(context.Background(), "[input.user.age] > 18", env, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != true {
		t.Fatalf("expected true, got %v", got)
	}

	got, err = Evaluate(context.Background(), "[input.total] * 2", env, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 15.0 {
		t.Fatalf("expected 15, got %v", got)
	}
}

func TestEvaluate_ItemRoot(t *testing.T) {
	env := testEnv().WithItem(map[string]any{"qty": 3}, 1)

	got, err := Evaluate(context.Background(), "[item.qty] + [index]", env, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4.0 {
		t.Fatalf("expected 4, got %v", got)
	}
}

func TestEvaluate_BaseRoot(t *testing.T) {
	got, err := Evaluate(context.Background(), "base.now", testEnv(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, got.(string)); err != nil {
		t.Fatalf("base.now should be RFC3339, got %v", got)
	}
}

func TestEvaluate_ErrorCarriesExpression(t *testing.T) {
	_, err := EvaluateAt(context.Background(), "1 +* 2", testEnv(), "metadata.where", 0)
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvalError, got %v", err)
	}
	if evalErr.Expression != "1 +* 2" || evalErr.Path != "metadata.where" {
		t.Fatalf("error should carry expression and path: %+v", evalErr)
	}
}

func TestEvaluate_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled context is honored even when the expression would succeed.
	_, err := Evaluate(ctx, "input.total", testEnv(), time.Minute)
	if err == nil {
		// The goroutine may win the race against the cancelled context; both
		// outcomes are acceptable, but an error must be an EvalError.
		return
	}
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvalError, got %v", err)
	}
}
