package memory

import (
	"context"
	"testing"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

func testGraph() ([]workflow.Node, []workflow.Edge) {
	nodes := []workflow.Node{
		{ID: 1, Type: workflow.TypeMap, Metadata: map[string]any{"mapping": map[string]any{"x": "input.a"}}},
		{ID: 2, Type: workflow.TypeReturn, Metadata: map[string]any{"payload_selector": "input.x"}},
	}
	edges := []workflow.Edge{{ParentID: 1, ChildID: 2}}
	return nodes, edges
}

func TestCreateAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()
	nodes, edges := testGraph()

	created, err := s.CreateWorkflow(ctx, workflow.Workflow{Name: "etl", IsAPI: true}, nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 {
		t.Error("id not assigned")
	}
	if created.UUID == "" {
		t.Error("uuid not assigned")
	}

	got, err := s.GetWorkflow(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "etl" {
		t.Errorf("Name = %q, want etl", got.Name)
	}

	gotNodes, gotEdges, err := s.GetGraph(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotNodes) != 2 || len(gotEdges) != 1 {
		t.Errorf("graph = %d nodes / %d edges, want 2/1", len(gotNodes), len(gotEdges))
	}
	for _, n := range gotNodes {
		if n.WorkflowID != created.ID {
			t.Errorf("node %d workflow_id = %d, want %d", n.ID, n.WorkflowID, created.ID)
		}
	}
}

func TestGetUnknownWorkflow(t *testing.T) {
	s := New()
	_, err := s.GetWorkflow(context.Background(), 99)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeNotFound {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestGraphConstraints(t *testing.T) {
	s := New()
	ctx := context.Background()

	t.Run("self edge", func(t *testing.T) {
		nodes, _ := testGraph()
		_, err := s.CreateWorkflow(ctx, workflow.Workflow{Name: "bad"}, nodes,
			[]workflow.Edge{{ParentID: 1, ChildID: 1}})
		if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeConflict {
			t.Errorf("err = %v, want CONFLICT", err)
		}
	})

	t.Run("duplicate edge", func(t *testing.T) {
		nodes, _ := testGraph()
		_, err := s.CreateWorkflow(ctx, workflow.Workflow{Name: "bad"}, nodes,
			[]workflow.Edge{{ParentID: 1, ChildID: 2}, {ParentID: 1, ChildID: 2}})
		if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeConflict {
			t.Errorf("err = %v, want CONFLICT", err)
		}
	})

	t.Run("dangling edge endpoint", func(t *testing.T) {
		nodes, _ := testGraph()
		_, err := s.CreateWorkflow(ctx, workflow.Workflow{Name: "bad"}, nodes,
			[]workflow.Edge{{ParentID: 1, ChildID: 7}})
		if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeInvalidInput {
			t.Errorf("err = %v, want INVALID_INPUT", err)
		}
	})

	t.Run("unknown node type", func(t *testing.T) {
		_, err := s.CreateWorkflow(ctx, workflow.Workflow{Name: "bad"},
			[]workflow.Node{{ID: 1, Type: "teleport"}}, nil)
		if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeUnknownNodeType {
			t.Errorf("err = %v, want UNKNOWN_NODE_TYPE", err)
		}
	})
}

func TestDeleteRemovesGraph(t *testing.T) {
	s := New()
	ctx := context.Background()
	nodes, edges := testGraph()
	created, err := s.CreateWorkflow(ctx, workflow.Workflow{Name: "gone"}, nodes, edges)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteWorkflow(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.GetGraph(ctx, created.ID); err == nil {
		t.Error("graph survived workflow deletion")
	}
	if err := s.DeleteWorkflow(ctx, created.ID); err == nil {
		t.Error("second delete should report NOT_FOUND")
	}
}

func TestListOrdersByID(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		nodes, edges := testGraph()
		if _, err := s.CreateWorkflow(ctx, workflow.Workflow{Name: name}, nodes, edges); err != nil {
			t.Fatal(err)
		}
	}
	all, err := s.ListWorkflows(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ID <= all[i-1].ID {
			t.Errorf("list not ordered by id: %v", all)
		}
	}
}
