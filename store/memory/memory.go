// Package memory provides an in-memory Store for tests and single-process
// deployments without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/store"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

type graph struct {
	nodes []workflow.Node
	edges []workflow.Edge
}

// Store keeps workflows in process memory. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	workflows map[int64]workflow.Workflow
	graphs    map[int64]graph
	nextID    int64
	nextRowID int64
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		workflows: make(map[int64]workflow.Workflow),
		graphs:    make(map[int64]graph),
	}
}

// CreateWorkflow saves a workflow and its graph, assigning identifiers.
func (s *Store) CreateWorkflow(_ context.Context, wf workflow.Workflow, nodes []workflow.Node, edges []workflow.Edge) (workflow.Workflow, error) {
	if err := checkGraph(nodes, edges); err != nil {
		return workflow.Workflow{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	wf.ID = s.nextID
	if wf.UUID == "" {
		wf.UUID = uuid.NewString()
	}

	stored := graph{
		nodes: make([]workflow.Node, len(nodes)),
		edges: make([]workflow.Edge, len(edges)),
	}
	copy(stored.nodes, nodes)
	copy(stored.edges, edges)
	for i := range stored.nodes {
		stored.nodes[i].WorkflowID = wf.ID
	}
	for i := range stored.edges {
		if stored.edges[i].ID == 0 {
			s.nextRowID++
			stored.edges[i].ID = s.nextRowID
		}
	}
	sort.Slice(stored.nodes, func(i, j int) bool { return stored.nodes[i].ID < stored.nodes[j].ID })

	s.workflows[wf.ID] = wf
	s.graphs[wf.ID] = stored
	return wf, nil
}

// GetWorkflow returns one workflow by id.
func (s *Store) GetWorkflow(_ context.Context, id int64) (workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return workflow.Workflow{}, errors.NotFound("workflow", fmt.Sprint(id))
	}
	return wf, nil
}

// ListWorkflows returns all workflows ordered by id.
func (s *Store) ListWorkflows(_ context.Context) ([]workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]workflow.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		result = append(result, wf)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetGraph returns the workflow's nodes and edges.
func (s *Store) GetGraph(_ context.Context, workflowID int64) ([]workflow.Node, []workflow.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.workflows[workflowID]; !ok {
		return nil, nil, errors.NotFound("workflow", fmt.Sprint(workflowID))
	}
	g := s.graphs[workflowID]
	nodes := make([]workflow.Node, len(g.nodes))
	edges := make([]workflow.Edge, len(g.edges))
	copy(nodes, g.nodes)
	copy(edges, g.edges)
	return nodes, edges, nil
}

// DeleteWorkflow removes a workflow and its graph.
func (s *Store) DeleteWorkflow(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return errors.NotFound("workflow", fmt.Sprint(id))
	}
	delete(s.workflows, id)
	delete(s.graphs, id)
	return nil
}

// checkGraph enforces the same structural constraints the database schema
// carries: known node types, no self-edges, no duplicate edges, and edge
// endpoints that exist in the node set.
func checkGraph(nodes []workflow.Node, edges []workflow.Edge) error {
	ids := make(map[int64]struct{}, len(nodes))
	for _, n := range nodes {
		if !n.Type.Valid() {
			return errors.UnknownNodeType(string(n.Type))
		}
		if _, dup := ids[n.ID]; dup {
			return errors.Conflict(fmt.Sprintf("duplicate node id %d", n.ID))
		}
		ids[n.ID] = struct{}{}
	}
	seen := make(map[[2]int64]struct{}, len(edges))
	for _, e := range edges {
		if e.ParentID == e.ChildID {
			return errors.Conflict(fmt.Sprintf("self-edge on node %d", e.ParentID))
		}
		if _, ok := ids[e.ParentID]; !ok {
			return errors.InvalidInput("edges", fmt.Sprintf("parent %d is not in the node set", e.ParentID))
		}
		if _, ok := ids[e.ChildID]; !ok {
			return errors.InvalidInput("edges", fmt.Sprintf("child %d is not in the node set", e.ChildID))
		}
		key := [2]int64{e.ParentID, e.ChildID}
		if _, dup := seen[key]; dup {
			return errors.Conflict(fmt.Sprintf("duplicate edge %d -> %d", e.ParentID, e.ChildID))
		}
		seen[key] = struct{}{}
	}
	return nil
}
