package nodes

import (
	"context"
	"reflect"
	"testing"

	"github.com/josephdodge8141/aspen-backend/workflow"
)

func TestFilterExecuteKeepsMatchingItems(t *testing.T) {
	r := NewRegistry(Deps{})
	svc, _ := r.Get(workflow.TypeFilter)

	inputs := map[string]any{
		"items": []any{
			map[string]any{"name": "a", "age": float64(25)},
			map[string]any{"name": "b", "age": float64(12)},
			map[string]any{"name": "c", "age": float64(40)},
		},
	}
	out, err := svc.Execute(context.Background(), inputs, map[string]any{"where": "[item.age] > 18"})
	if err != nil {
		t.Fatal(err)
	}
	kept, ok := out["items"].([]any)
	if !ok {
		t.Fatalf("items is %T, want []any", out["items"])
	}
	if len(kept) != 2 {
		t.Fatalf("kept %d items, want 2", len(kept))
	}
	first := kept[0].(map[string]any)
	if first["name"] != "a" {
		t.Errorf("first kept item = %v, want name a", first)
	}
}

func TestFilterExecuteRejectsNonArraySelection(t *testing.T) {
	r := NewRegistry(Deps{})
	svc, _ := r.Get(workflow.TypeFilter)

	_, err := svc.Execute(context.Background(),
		map[string]any{"items": "not an array"},
		map[string]any{"where": "item"})
	if err == nil {
		t.Fatal("expected an error for a scalar selection")
	}
}

func TestMapExecuteProjectsKeys(t *testing.T) {
	r := NewRegistry(Deps{})
	svc, _ := r.Get(workflow.TypeMap)

	inputs := map[string]any{"user": map[string]any{"name": "ada", "age": float64(36)}}
	meta := map[string]any{"mapping": map[string]any{
		"who":     "input.user.name",
		"adult":   "[input.user.age] >= 18",
		"version": float64(2),
	}}
	out, err := svc.Execute(context.Background(), inputs, meta)
	if err != nil {
		t.Fatal(err)
	}
	if out["who"] != "ada" {
		t.Errorf("who = %v, want ada", out["who"])
	}
	if out["adult"] != true {
		t.Errorf("adult = %v, want true", out["adult"])
	}
	if out["version"] != float64(2) {
		t.Errorf("version = %v, want 2 (literals pass through)", out["version"])
	}
}

func TestAdvancedExecuteWrapsScalars(t *testing.T) {
	r := NewRegistry(Deps{})
	svc, _ := r.Get(workflow.TypeAdvanced)

	out, err := svc.Execute(context.Background(),
		map[string]any{"a": float64(2), "b": float64(3)},
		map[string]any{"expression": "[input.a] * [input.b]"})
	if err != nil {
		t.Fatal(err)
	}
	if out["result"] != float64(6) {
		t.Errorf("result = %v, want 6", out["result"])
	}
}

func TestSplitExecuteGroupBy(t *testing.T) {
	r := NewRegistry(Deps{})
	svc, _ := r.Get(workflow.TypeSplit)

	inputs := map[string]any{"items": []any{
		map[string]any{"kind": "fruit", "name": "apple"},
		map[string]any{"kind": "veg", "name": "kale"},
		map[string]any{"kind": "fruit", "name": "pear"},
	}}
	out, err := svc.Execute(context.Background(), inputs, map[string]any{"by": "item.kind"})
	if err != nil {
		t.Fatal(err)
	}
	groups := out["groups"].(map[string]any)
	if len(groups["fruit"].([]any)) != 2 {
		t.Errorf("fruit group = %v, want 2 items", groups["fruit"])
	}
	keys := out["keys"].([]any)
	if !reflect.DeepEqual(keys, []any{"fruit", "veg"}) {
		t.Errorf("keys = %v, want first-seen order [fruit veg]", keys)
	}
}

func TestSplitExecuteChunk(t *testing.T) {
	r := NewRegistry(Deps{})
	svc, _ := r.Get(workflow.TypeSplit)

	inputs := map[string]any{"items": []any{1, 2, 3, 4, 5}}
	out, err := svc.Execute(context.Background(), inputs,
		map[string]any{"by": "item", "mode": "chunk", "chunk_size": float64(2)})
	if err != nil {
		t.Fatal(err)
	}
	chunks := out["chunks"].([]any)
	if len(chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(chunks))
	}
	if got := chunks[2].([]any); len(got) != 1 {
		t.Errorf("last chunk = %v, want a single trailing item", got)
	}
}

func TestSplitExecuteChunkRejectsBadSize(t *testing.T) {
	r := NewRegistry(Deps{})
	svc, _ := r.Get(workflow.TypeSplit)
	inputs := map[string]any{"items": []any{1, 2, 3}}

	for name, meta := range map[string]map[string]any{
		"missing": {"by": "item", "mode": "chunk"},
		"zero":    {"by": "item", "mode": "chunk", "chunk_size": float64(0)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Execute(context.Background(), inputs, meta)
			if err == nil {
				t.Fatal("expected a config error for an unusable chunk_size")
			}
		})
	}
}

func TestMergeOutputs(t *testing.T) {
	parents := []map[string]any{
		{"a": float64(1), "list": []any{"x"}, "obj": map[string]any{"p": 1}},
		{"a": float64(2), "list": []any{"y"}, "obj": map[string]any{"q": 2}, "only": "second"},
	}

	t.Run("union keeps the later parent", func(t *testing.T) {
		got := MergeOutputs(MergeUnion, parents)
		if got["a"] != float64(2) {
			t.Errorf("a = %v, want 2", got["a"])
		}
		if got["only"] != "second" {
			t.Errorf("only = %v, want second", got["only"])
		}
	})

	t.Run("concat joins arrays and unions objects", func(t *testing.T) {
		got := MergeOutputs(MergeConcat, parents)
		if list := got["list"].([]any); !reflect.DeepEqual(list, []any{"x", "y"}) {
			t.Errorf("list = %v, want [x y]", list)
		}
		obj := got["obj"].(map[string]any)
		if len(obj) != 2 {
			t.Errorf("obj = %v, want both keys", obj)
		}
	})

	t.Run("prefer_left takes the first non-null", func(t *testing.T) {
		withNil := []map[string]any{
			{"a": nil, "b": "first"},
			{"a": "filled", "b": "second"},
		}
		got := MergeOutputs(MergePreferLeft, withNil)
		if got["a"] != "filled" {
			t.Errorf("a = %v, want filled (nil skipped)", got["a"])
		}
		if got["b"] != "first" {
			t.Errorf("b = %v, want first", got["b"])
		}
	})
}

func TestEvalPredicateTruthiness(t *testing.T) {
	tests := []struct {
		name      string
		predicate string
		inputs    map[string]any
		want      bool
	}{
		{"comparison", "[input.age] > 18", map[string]any{"age": float64(30)}, true},
		{"failed comparison", "[input.age] > 18", map[string]any{"age": float64(10)}, false},
		{"truthy string path", "input.name", map[string]any{"name": "ada"}, true},
		{"missing key is false", "input.missing", map[string]any{}, false},
		{"empty array is false", "input.items", map[string]any{"items": []any{}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EvalPredicate(context.Background(), tc.predicate, tc.inputs, 0)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("EvalPredicate(%q) = %v, want %v", tc.predicate, got, tc.want)
			}
		})
	}
}
