package nodes

import (
	"context"
	"testing"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

func TestRegistryCoversEveryNodeType(t *testing.T) {
	r := NewRegistry(Deps{})
	for _, nodeType := range workflow.AllNodeTypes {
		if _, err := r.Get(nodeType); err != nil {
			t.Errorf("no service registered for %q: %v", nodeType, err)
		}
	}
	if got, want := len(r.Types()), len(workflow.AllNodeTypes); got != want {
		t.Errorf("registry holds %d services, want %d", got, want)
	}
}

func TestRegistryRejectsUnknownType(t *testing.T) {
	r := NewRegistry(Deps{})
	_, err := r.Get(workflow.NodeType("teleport"))
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != errors.ErrCodeUnknownNodeType {
		t.Errorf("code = %q, want %q", appErr.Code, errors.ErrCodeUnknownNodeType)
	}
}

func TestValidateRejectsUnknownMetadataKeys(t *testing.T) {
	r := NewRegistry(Deps{})

	tests := []struct {
		nodeType workflow.NodeType
		meta     map[string]any
	}{
		{workflow.TypeJob, map[string]any{"prompt": "hi", "model_name": "m", "promt": "typo"}},
		{workflow.TypeFilter, map[string]any{"where": "item.ok", "wherre": true}},
		{workflow.TypeMerge, map[string]any{"strategy": "union", "stratagy": "union"}},
		{workflow.TypeReturn, map[string]any{"payload_selector": "input", "payload": "x"}},
	}
	for _, tc := range tests {
		svc, err := r.Get(tc.nodeType)
		if err != nil {
			t.Fatalf("%s: %v", tc.nodeType, err)
		}
		err = svc.Validate(tc.meta, nil)
		appErr, ok := errors.AsAppError(err)
		if !ok {
			t.Fatalf("%s: expected AppError, got %v", tc.nodeType, err)
		}
		if appErr.Code != errors.ErrCodeUnknownField {
			t.Errorf("%s: code = %q, want %q", tc.nodeType, appErr.Code, errors.ErrCodeUnknownField)
		}
	}
}

func TestValidateRequiredFields(t *testing.T) {
	r := NewRegistry(Deps{})

	tests := []struct {
		name     string
		nodeType workflow.NodeType
		meta     map[string]any
		wantErr  bool
	}{
		{"job ok", workflow.TypeJob, map[string]any{"prompt": "summarize {{input.text}}", "model_name": "gpt-4o-mini"}, false},
		{"job missing prompt", workflow.TypeJob, map[string]any{"model_name": "gpt-4o-mini"}, true},
		{"job bad placeholder root", workflow.TypeJob, map[string]any{"prompt": "{{result.text}}", "model_name": "m"}, true},
		{"embed ok", workflow.TypeEmbed, map[string]any{"vector_store_id": "vs1", "input_selector": "input.text"}, false},
		{"embed missing store", workflow.TypeEmbed, map[string]any{"input_selector": "input.text"}, true},
		{"get_api ok", workflow.TypeGetAPI, map[string]any{"url": "https://api.example.com/v1"}, false},
		{"get_api bad url", workflow.TypeGetAPI, map[string]any{"url": "not a url"}, true},
		{"if_else ok", workflow.TypeIfElse, map[string]any{"predicate": "[input.age] > 18"}, false},
		{"if_else bad syntax", workflow.TypeIfElse, map[string]any{"predicate": "[input.age] >"}, true},
		{"split chunk needs size", workflow.TypeSplit, map[string]any{"by": "item.key", "mode": "chunk"}, true},
		{"split chunk zero size", workflow.TypeSplit, map[string]any{"by": "item.key", "mode": "chunk", "chunk_size": 0}, true},
		{"split chunk ok", workflow.TypeSplit, map[string]any{"by": "item.key", "mode": "chunk", "chunk_size": 10}, false},
		{"merge bad strategy", workflow.TypeMerge, map[string]any{"strategy": "zip"}, true},
		{"workflow ok", workflow.TypeWorkflow, map[string]any{"workflow_id": 7}, false},
		{"workflow missing id", workflow.TypeWorkflow, map[string]any{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := r.Get(tc.nodeType)
			if err != nil {
				t.Fatal(err)
			}
			err = svc.Validate(tc.meta, nil)
			if tc.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPlanShapes(t *testing.T) {
	r := NewRegistry(Deps{})
	inputShape := workflow.Shape{"text": "string"}

	tests := []struct {
		nodeType workflow.NodeType
		meta     map[string]any
		wantKeys []string
	}{
		{workflow.TypeJob, map[string]any{"prompt": "p", "model_name": "m"}, []string{"text"}},
		{workflow.TypeEmbed, map[string]any{"vector_store_id": "v", "input_selector": "input.text"}, []string{"embedded", "count"}},
		{workflow.TypeGuru, map[string]any{"space": "s", "query_template": "q"}, []string{"items"}},
		{workflow.TypeGetAPI, map[string]any{"url": "https://x.test"}, []string{"status", "body"}},
		{workflow.TypeVectorQuery, map[string]any{"vector_store_id": "v", "query_template": "q"}, []string{"results"}},
		{workflow.TypeIfElse, map[string]any{"predicate": "input.flag"}, []string{"text", "condition_result"}},
		{workflow.TypeMerge, map[string]any{}, []string{"text", "merged_data"}},
		{workflow.TypeReturn, map[string]any{"payload_selector": "input"}, []string{"payload", "status_code", "content_type"}},
	}
	for _, tc := range tests {
		svc, err := r.Get(tc.nodeType)
		if err != nil {
			t.Fatalf("%s: %v", tc.nodeType, err)
		}
		shape := svc.Plan(tc.meta, inputShape, nil)
		for _, key := range tc.wantKeys {
			if _, ok := shape[key]; !ok {
				t.Errorf("%s: plan shape missing key %q (got %v)", tc.nodeType, key, shape)
			}
		}
	}
}

func TestPlanHonorsStructuredOutput(t *testing.T) {
	r := NewRegistry(Deps{})
	svc, err := r.Get(workflow.TypeJob)
	if err != nil {
		t.Fatal(err)
	}

	declared := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"score":   map[string]any{"type": "number"},
		},
	}
	shape := svc.Plan(map[string]any{"prompt": "p", "model_name": "m"}, nil, declared)
	if shape["summary"] != "string" || shape["score"] != "number" {
		t.Errorf("declared output not reduced to shape: %v", shape)
	}
}

func TestJobExecuteRendersPrompt(t *testing.T) {
	captured := &capturingModel{}
	r := NewRegistry(Deps{Model: captured})
	svc, _ := r.Get(workflow.TypeJob)

	meta := map[string]any{"prompt": "summarize {{input.text}}", "model_name": "m"}
	out, err := svc.Execute(context.Background(), map[string]any{"text": "hello"}, meta)
	if err != nil {
		t.Fatal(err)
	}
	if captured.lastPrompt != "summarize hello" {
		t.Errorf("prompt = %q, want %q", captured.lastPrompt, "summarize hello")
	}
	if out["text"] != "stubbed" {
		t.Errorf("output text = %v, want %q", out["text"], "stubbed")
	}
}

type capturingModel struct {
	lastPrompt string
}

func (c *capturingModel) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	c.lastPrompt = req.Prompt
	return CompletionResponse{Text: "stubbed"}, nil
}

func TestWorkflowExecuteRequiresEngine(t *testing.T) {
	r := NewRegistry(Deps{})
	svc, _ := r.Get(workflow.TypeWorkflow)
	_, err := svc.Execute(context.Background(), nil, map[string]any{"workflow_id": 3})
	if err == nil {
		t.Fatal("expected an error outside an engine")
	}
}
