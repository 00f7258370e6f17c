package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/expr"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// defaultItemsPath is where collection-oriented actions look for their input
// when no selector is configured.
const defaultItemsPath = "input.items"

// filterService keeps the items of a collection that satisfy a predicate.
type filterService struct {
	deps Deps
}

func (s *filterService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("filter", structuredOutput); err != nil {
		return err
	}
	var m MetaFilter
	if err := decodeStrict("filter", meta, &m); err != nil {
		return err
	}
	if m.ItemsSelector != "" {
		if err := checkExpression(m.ItemsSelector, "metadata.items_selector"); err != nil {
			return err
		}
	}
	return checkExpression(m.Where, "metadata.where")
}

// Plan passes the input shape through: a filter changes cardinality, never
// shape.
func (s *filterService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return inputShape
}

func (s *filterService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaFilter
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("filter", err.Error())
	}
	selector := m.ItemsSelector
	if selector == "" {
		selector = defaultItemsPath
	}

	env := expr.NewEnv(inputs)
	items, err := selectItems(ctx, selector, "metadata.items_selector", env, s.deps.ExprTimeout)
	if err != nil {
		return nil, err
	}

	kept := make([]any, 0, len(items))
	for i, item := range items {
		itemEnv := env.WithItem(item, i)
		verdict, err := expr.EvaluateAt(ctx, m.Where, itemEnv, "metadata.where", s.deps.ExprTimeout)
		if err != nil {
			return nil, errors.ExpressionEval(m.Where, err)
		}
		if truthy(verdict) {
			kept = append(kept, item)
		}
	}

	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = v
	}
	out[leafKey(selector)] = kept
	return out, nil
}

// mapService projects the input into a new object, one expression per output
// key.
type mapService struct {
	deps Deps
}

func (s *mapService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("map", structuredOutput); err != nil {
		return err
	}
	var m MetaMap
	if err := decodeStrict("map", meta, &m); err != nil {
		return err
	}
	for key, value := range m.Mapping {
		expression, ok := value.(string)
		if !ok {
			continue // literal values pass through untouched
		}
		if err := checkExpression(expression, "metadata.mapping."+key); err != nil {
			return err
		}
	}
	return nil
}

// Plan reports the mapping's keys; value types are unknowable without
// running the expressions.
func (s *mapService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	var m MetaMap
	if err := decodeLoose(meta, &m); err != nil {
		return workflow.Shape{}
	}
	shape := make(workflow.Shape, len(m.Mapping))
	for key := range m.Mapping {
		shape[key] = "unknown"
	}
	return shape
}

func (s *mapService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaMap
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("map", err.Error())
	}

	env := expr.NewEnv(inputs)
	out := make(map[string]any, len(m.Mapping))
	for key, value := range m.Mapping {
		expression, ok := value.(string)
		if !ok {
			out[key] = value
			continue
		}
		resolved, err := expr.EvaluateAt(ctx, expression, env, "metadata.mapping."+key, s.deps.ExprTimeout)
		if err != nil {
			return nil, errors.ExpressionEval(expression, err)
		}
		out[key] = resolved
	}
	return out, nil
}

// advancedService evaluates one free-form expression over the whole input.
type advancedService struct {
	deps Deps
}

func (s *advancedService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("advanced", structuredOutput); err != nil {
		return err
	}
	var m MetaAdvanced
	if err := decodeStrict("advanced", meta, &m); err != nil {
		return err
	}
	return checkExpression(m.Expression, "metadata.expression")
}

func (s *advancedService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return workflow.Shape{"result": "unknown"}
}

func (s *advancedService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaAdvanced
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("advanced", err.Error())
	}

	env := expr.NewEnv(inputs)
	value, err := expr.EvaluateAt(ctx, m.Expression, env, "metadata.expression", s.deps.ExprTimeout)
	if err != nil {
		return nil, errors.ExpressionEval(m.Expression, err)
	}
	if obj, ok := value.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{"result": value}, nil
}

// splitService partitions a collection, either by a computed key or into
// fixed-size chunks.
type splitService struct {
	deps Deps
}

func (s *splitService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("split", structuredOutput); err != nil {
		return err
	}
	var m MetaSplit
	if err := decodeStrict("split", meta, &m); err != nil {
		return err
	}
	switch m.SplitMode() {
	case SplitGroupBy:
		return checkExpression(m.By, "metadata.by")
	case SplitChunk:
		if m.ChunkSize == nil || *m.ChunkSize <= 0 {
			return errors.NodeConfig("split", "chunk mode requires chunk_size > 0")
		}
		return nil
	default:
		return errors.NodeConfig("split", fmt.Sprintf("unknown split mode %q", m.Mode))
	}
}

func (s *splitService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	var m MetaSplit
	if err := decodeLoose(meta, &m); err == nil && m.SplitMode() == SplitChunk {
		return workflow.Shape{"chunks": "array", "count": "number"}
	}
	return workflow.Shape{"groups": "object", "keys": "array"}
}

func (s *splitService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaSplit
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("split", err.Error())
	}

	env := expr.NewEnv(inputs)
	items, err := selectItems(ctx, defaultItemsPath, "input.items", env, s.deps.ExprTimeout)
	if err != nil {
		return nil, err
	}

	if m.SplitMode() == SplitChunk {
		// Validate runs before Execute in the normal flow, but a graph can
		// reach execution without it. Re-check rather than dereference.
		if m.ChunkSize == nil || *m.ChunkSize <= 0 {
			return nil, errors.NodeConfig("split", "chunk mode requires chunk_size > 0")
		}
		size := *m.ChunkSize
		chunks := make([]any, 0, (len(items)+size-1)/size)
		for start := 0; start < len(items); start += size {
			end := start + size
			if end > len(items) {
				end = len(items)
			}
			chunks = append(chunks, append([]any(nil), items[start:end]...))
		}
		return map[string]any{"chunks": chunks, "count": len(chunks)}, nil
	}

	groups := make(map[string]any)
	var keys []any
	for i, item := range items {
		itemEnv := env.WithItem(item, i)
		keyValue, err := expr.EvaluateAt(ctx, m.By, itemEnv, "metadata.by", s.deps.ExprTimeout)
		if err != nil {
			return nil, errors.ExpressionEval(m.By, err)
		}
		key := fmt.Sprintf("%v", keyValue)
		group, ok := groups[key].([]any)
		if !ok {
			keys = append(keys, key)
		}
		groups[key] = append(group, item)
	}
	return map[string]any{"groups": groups, "keys": keys}, nil
}

// selectItems resolves a selector to an array. A nil value is an empty
// collection; any other non-array value is an error, since the caller is
// about to iterate.
func selectItems(ctx context.Context, selector, fieldPath string, env *expr.Env, timeout time.Duration) ([]any, error) {
	value, err := expr.EvaluateAt(ctx, selector, env, fieldPath, timeout)
	if err != nil {
		return nil, errors.ExpressionEval(selector, err)
	}
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return nil, errors.ExpressionEval(selector,
			fmt.Errorf("selector must resolve to an array, got %s", workflow.TypeName(value)))
	}
}

// truthy applies expression-language truthiness: nil, false, zero, empty
// string, empty collection are false.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// leafKey returns the last dotted segment of a selector path, stripped of
// indexes.
func leafKey(selector string) string {
	segments := strings.Split(selector, ".")
	last := segments[len(segments)-1]
	if idx := strings.IndexByte(last, '['); idx >= 0 {
		last = last[:idx]
	}
	return last
}
