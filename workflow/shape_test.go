package workflow

import (
	"reflect"
	"testing"
)

func TestShapeFromSchema_Object(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
			"nested": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"flag": map[string]any{"type": "boolean"},
				},
			},
			"items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}

	got := ShapeFromSchema(schema)

	want := Shape{
		"name":   "string",
		"count":  "integer",
		"nested": Shape{"flag": "boolean"},
		"items":  Shape{"type": "array", "items": "string"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("shape mismatch:\n got %#v\nwant %#v", got, want)
	}
}

func TestShapeFromSchema_Empty(t *testing.T) {
	if got := ShapeFromSchema(nil); len(got) != 0 {
		t.Fatalf("expected empty shape, got %#v", got)
	}
}

func TestShapeFromSchema_Scalar(t *testing.T) {
	got := ShapeFromSchema(map[string]any{"type": "string"})
	if got["type"] != "string" {
		t.Fatalf("expected scalar shape, got %#v", got)
	}
}

func TestShapeOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Shape
	}{
		{
			name: "object",
			in:   map[string]any{"a": "x", "b": 1.5, "c": true, "d": nil},
			want: Shape{"a": "string", "b": "number", "c": "boolean", "d": "null"},
		},
		{
			name: "array",
			in:   []any{1, 2},
			want: Shape{"type": "array"},
		},
		{
			name: "scalar",
			in:   42,
			want: Shape{"type": "number"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShapeOf(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNodeType_Valid(t *testing.T) {
	for _, nt := range AllNodeTypes {
		if !nt.Valid() {
			t.Fatalf("%s should be valid", nt)
		}
	}
	if NodeType("bogus").Valid() {
		t.Fatal("bogus type should not be valid")
	}
}

func TestTrigger_Configured(t *testing.T) {
	if (Trigger{}).Configured() {
		t.Fatal("empty trigger should not be configured")
	}
	if !(Trigger{IsAPI: true}).Configured() {
		t.Fatal("api trigger should be configured")
	}
	if !(Trigger{CronSchedule: "0 * * * *"}).Configured() {
		t.Fatal("cron trigger should be configured")
	}
}
