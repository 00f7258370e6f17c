package nodes

import (
	"context"
	"time"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/expr"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// The services below belong to the engine-driven control-flow group. Their
// Validate and Plan run like any other type; Execute is only reached when a
// caller runs the node outside an engine, so it returns an advisory result
// instead of steering the graph.

// ifElseService gates its outbound edges on a predicate.
type ifElseService struct {
	deps Deps
}

func (s *ifElseService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("if_else", structuredOutput); err != nil {
		return err
	}
	var m MetaIfElse
	if err := decodeStrict("if_else", meta, &m); err != nil {
		return err
	}
	return checkExpression(m.Predicate, "metadata.predicate")
}

// Plan passes the input shape through and adds the condition result.
func (s *ifElseService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	shape := make(workflow.Shape, len(inputShape)+1)
	for k, v := range inputShape {
		shape[k] = v
	}
	shape["condition_result"] = "boolean"
	return shape
}

func (s *ifElseService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaIfElse
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("if_else", err.Error())
	}
	verdict, err := EvalPredicate(ctx, m.Predicate, inputs, s.deps.ExprTimeout)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(inputs)+1)
	for k, v := range inputs {
		out[k] = v
	}
	out["condition_result"] = verdict
	return out, nil
}

// forEachService iterates its successor subgraph once per selected item.
type forEachService struct {
	deps Deps
}

func (s *forEachService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("for_each", structuredOutput); err != nil {
		return err
	}
	var m MetaForEach
	if err := decodeStrict("for_each", meta, &m); err != nil {
		return err
	}
	return checkExpression(m.ItemsSelector, "metadata.items_selector")
}

func (s *forEachService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return workflow.Shape{"results": "array", "count": "number"}
}

func (s *forEachService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaForEach
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("for_each", err.Error())
	}
	env := expr.NewEnv(inputs)
	items, err := selectItems(ctx, m.ItemsSelector, "metadata.items_selector", env, s.deps.ExprTimeout)
	if err != nil {
		return nil, err
	}
	// Without an engine there is no subgraph to run; surface the selection.
	return map[string]any{"results": items, "count": len(items)}, nil
}

// mergeService joins fan-in parents into one object.
type mergeService struct {
	deps Deps
}

func (s *mergeService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("merge", structuredOutput); err != nil {
		return err
	}
	var m MetaMerge
	return decodeStrict("merge", meta, &m)
}

// Plan passes the combined parent shape through and marks the merged view.
func (s *mergeService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	shape := make(workflow.Shape, len(inputShape)+1)
	for k, v := range inputShape {
		shape[k] = v
	}
	shape["merged_data"] = "object"
	return shape
}

func (s *mergeService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(inputs)+1)
	for k, v := range inputs {
		out[k] = v
	}
	out["merged_data"] = inputs
	return out, nil
}

// returnService selects the payload handed back to the caller.
type returnService struct {
	deps Deps
}

func (s *returnService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("return", structuredOutput); err != nil {
		return err
	}
	var m MetaReturn
	if err := decodeStrict("return", meta, &m); err != nil {
		return err
	}
	return checkExpression(m.PayloadSelector, "metadata.payload_selector")
}

func (s *returnService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return workflow.Shape{"payload": "unknown", "status_code": "number", "content_type": "string"}
}

func (s *returnService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaReturn
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("return", err.Error())
	}

	env := expr.NewEnv(inputs)
	payload, err := expr.EvaluateAt(ctx, m.PayloadSelector, env, "metadata.payload_selector", s.deps.ExprTimeout)
	if err != nil {
		return nil, errors.ExpressionEval(m.PayloadSelector, err)
	}

	status := 200
	if m.StatusCode != nil {
		status = *m.StatusCode
	}
	contentType := m.ContentType
	if contentType == "" {
		contentType = ContentJSON
	}
	return map[string]any{
		"payload":      payload,
		"status_code":  status,
		"content_type": contentType,
	}, nil
}

// workflowCallService invokes another workflow synchronously. The engine
// resolves and runs the target; outside an engine there is nothing to call.
type workflowCallService struct {
	deps Deps
}

func (s *workflowCallService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("workflow", structuredOutput); err != nil {
		return err
	}
	var m MetaWorkflowCall
	if err := decodeStrict("workflow", meta, &m); err != nil {
		return err
	}
	for key, tmpl := range m.InputMapping {
		if err := checkTemplate(tmpl, "metadata.input_mapping."+key); err != nil {
			return err
		}
	}
	return nil
}

func (s *workflowCallService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return workflow.Shape{"output": "object"}
}

func (s *workflowCallService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaWorkflowCall
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("workflow", err.Error())
	}
	return nil, errors.NodeConfig("workflow", "sub-workflow invocation requires an engine")
}

// EvalPredicate evaluates a boolean expression over inputs, applying
// expression-language truthiness to non-boolean results.
func EvalPredicate(ctx context.Context, predicate string, inputs map[string]any, timeout time.Duration) (bool, error) {
	env := expr.NewEnv(inputs)
	verdict, err := expr.EvaluateAt(ctx, predicate, env, "metadata.predicate", timeout)
	if err != nil {
		return false, errors.ExpressionEval(predicate, err)
	}
	return truthy(verdict), nil
}

// SelectForEachItems resolves a for_each node's item selector against its
// inputs, for callers driving the iteration themselves.
func SelectForEachItems(ctx context.Context, m MetaForEach, inputs map[string]any, timeout time.Duration) ([]any, error) {
	env := expr.NewEnv(inputs)
	return selectItems(ctx, m.ItemsSelector, "metadata.items_selector", env, timeout)
}

// MapSubworkflowInputs builds the starting inputs for a workflow-call node
// from its input_mapping templates. Single-placeholder values keep their
// resolved type.
func MapSubworkflowInputs(ctx context.Context, m MetaWorkflowCall, inputs map[string]any, deps Deps) map[string]any {
	env := expr.NewEnv(inputs)
	mapped := make(map[string]any, len(m.InputMapping))
	for key, tmpl := range m.InputMapping {
		mapped[key] = renderBodyValue(ctx, tmpl, env, deps)
	}
	return mapped
}

// MergeOutputs combines ordered parent outputs according to a merge
// strategy. Parents arrive in topo order; see each strategy's rule for who
// wins a key collision.
func MergeOutputs(strategy MergeStrategy, parents []map[string]any) map[string]any {
	switch strategy {
	case MergeConcat:
		return mergeConcat(parents)
	case MergePreferLeft:
		return mergePreferLeft(parents)
	default:
		return mergeUnion(parents)
	}
}

// mergeUnion shallow-merges; the later parent in topo order wins.
func mergeUnion(parents []map[string]any) map[string]any {
	out := make(map[string]any)
	for _, parent := range parents {
		for k, v := range parent {
			out[k] = v
		}
	}
	return out
}

// mergeConcat concatenates array values and unions object values; anything
// else falls back to union (later parent wins).
func mergeConcat(parents []map[string]any) map[string]any {
	out := make(map[string]any)
	for _, parent := range parents {
		for k, v := range parent {
			existing, present := out[k]
			if !present {
				out[k] = v
				continue
			}
			switch prev := existing.(type) {
			case []any:
				if next, ok := v.([]any); ok {
					out[k] = append(append([]any(nil), prev...), next...)
					continue
				}
			case map[string]any:
				if next, ok := v.(map[string]any); ok {
					merged := make(map[string]any, len(prev)+len(next))
					for pk, pv := range prev {
						merged[pk] = pv
					}
					for nk, nv := range next {
						merged[nk] = nv
					}
					out[k] = merged
					continue
				}
			}
			out[k] = v
		}
	}
	return out
}

// mergePreferLeft takes the first non-null value per key in parent order.
func mergePreferLeft(parents []map[string]any) map[string]any {
	out := make(map[string]any)
	for _, parent := range parents {
		for k, v := range parent {
			if existing, present := out[k]; present && existing != nil {
				continue
			}
			if v == nil {
				if _, present := out[k]; !present {
					out[k] = nil
				}
				continue
			}
			out[k] = v
		}
	}
	return out
}
