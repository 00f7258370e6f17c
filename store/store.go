// Package store defines persistence for workflows and their graphs.
package store

import (
	"context"

	"github.com/josephdodge8141/aspen-backend/workflow"
)

// Store persists workflows together with their node/edge graphs. Errors are
// *errors.AppError values: NOT_FOUND for missing workflows, CONFLICT for
// constraint violations.
type Store interface {
	// CreateWorkflow saves a workflow and its graph atomically, returning
	// the workflow with identifiers assigned.
	CreateWorkflow(ctx context.Context, wf workflow.Workflow, nodes []workflow.Node, edges []workflow.Edge) (workflow.Workflow, error)

	// GetWorkflow returns one workflow by id.
	GetWorkflow(ctx context.Context, id int64) (workflow.Workflow, error)

	// ListWorkflows returns all workflows ordered by id.
	ListWorkflows(ctx context.Context) ([]workflow.Workflow, error)

	// GetGraph returns the nodes and edges of a workflow, nodes ordered by
	// id. A workflow with no nodes returns empty slices, not an error.
	GetGraph(ctx context.Context, workflowID int64) ([]workflow.Node, []workflow.Edge, error)

	// DeleteWorkflow removes a workflow and, by cascade, its graph.
	DeleteWorkflow(ctx context.Context, id int64) error
}

// Resolver adapts a Store to the engine's sub-workflow lookup.
type Resolver struct {
	Store Store
}

// Resolve returns the stored graph of the target workflow.
func (r Resolver) Resolve(ctx context.Context, workflowID int64) ([]workflow.Node, []workflow.Edge, error) {
	return r.Store.GetGraph(ctx, workflowID)
}
