package engine

import (
	"context"
	"fmt"

	"github.com/josephdodge8141/aspen-backend/dag"
	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/nodes"
	"github.com/josephdodge8141/aspen-backend/observability"
	"github.com/josephdodge8141/aspen-backend/runs"
	"github.com/josephdodge8141/aspen-backend/util"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

type runSummary struct {
	executed int
	skipped  int
	failed   bool
}

// walk holds the per-graph execution state: adjacency, activation, and the
// actual outputs produced so far.
type walk struct {
	nodes    map[int64]workflow.Node
	edges    []workflow.Edge
	incoming map[int64][]workflow.Edge
	outgoing map[int64][]workflow.Edge
	topo     []int64

	outputs    map[int64]map[string]any
	active     map[int64]bool // edge id -> active
	settled    map[int64]bool // nodes already handled (executed, skipped, or consumed by for_each)
	foreachSet map[int64]struct{}
}

func newWalk(nodeList []workflow.Node, edges []workflow.Edge, topo []int64) *walk {
	w := &walk{
		nodes:      make(map[int64]workflow.Node, len(nodeList)),
		edges:      edges,
		incoming:   make(map[int64][]workflow.Edge),
		outgoing:   make(map[int64][]workflow.Edge),
		topo:       topo,
		outputs:    make(map[int64]map[string]any),
		active:     make(map[int64]bool),
		settled:    make(map[int64]bool),
		foreachSet: make(map[int64]struct{}),
	}
	for _, n := range nodeList {
		w.nodes[n.ID] = n
	}
	for _, e := range edges {
		w.incoming[e.ChildID] = append(w.incoming[e.ChildID], e)
		w.outgoing[e.ParentID] = append(w.outgoing[e.ParentID], e)
	}
	return w
}

// runnable reports whether a node should execute: entry nodes always do,
// everything else needs at least one active inbound edge.
func (w *walk) runnable(id int64) bool {
	inbound := w.incoming[id]
	if len(inbound) == 0 {
		return true
	}
	for _, e := range inbound {
		if w.active[e.ID] {
			return true
		}
	}
	return false
}

// activate marks every outbound edge of a completed node live. For if_else
// only the edge whose label matches the verdict activates.
func (w *walk) activate(id int64, branch *string) {
	for _, e := range w.outgoing[id] {
		if branch != nil && util.Deref(e.BranchLabel) != *branch {
			continue
		}
		w.active[e.ID] = true
	}
}

// descendants returns every node reachable forward from id.
func (w *walk) descendants(id int64) map[int64]struct{} {
	result := make(map[int64]struct{})
	queue := []int64{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range w.outgoing[current] {
			if _, ok := result[e.ChildID]; ok {
				continue
			}
			result[e.ChildID] = struct{}{}
			queue = append(queue, e.ChildID)
		}
	}
	return result
}

// executeGraph drives one graph to completion inside an existing run. The
// returned outputs map carries every executed node's actual output so
// callers (for_each, sub-workflows) can harvest results.
func (e *Engine) executeGraph(ctx context.Context, state *runs.State, nodeList []workflow.Node, edges []workflow.Edge, topo []int64, startingInputs map[string]any, depth int) (runSummary, map[int64]map[string]any) {
	w := newWalk(nodeList, edges, topo)
	summary := runSummary{}

	for _, id := range topo {
		if w.settled[id] {
			continue
		}
		if state.Cancelled() {
			e.emit(state, runs.Error("run cancelled", map[string]any{
				"node_id": id,
			}))
			summary.failed = true
			return summary, w.outputs
		}

		node := w.nodes[id]
		if !w.runnable(id) {
			w.settled[id] = true
			summary.skipped++
			e.emit(state, runs.Info("branch_skipped", map[string]any{
				"node_id":   id,
				"node_type": string(node.Type),
			}))
			continue
		}

		inputs := e.resolveInputs(w, id, startingInputs)
		e.emit(state, runs.Info("node_start", map[string]any{
			"node_id":   id,
			"node_type": string(node.Type),
		}))

		output, err := e.executeNode(ctx, state, w, node, inputs, depth)
		w.settled[id] = true

		if err != nil {
			stop := e.handleNodeError(state, w, node, err, &summary)
			if stop {
				return summary, w.outputs
			}
			continue
		}

		summary.executed++
		w.outputs[id] = output
		e.emit(state, runs.Info("node_output", map[string]any{
			"node_id": id,
			"output":  output,
		}))

		if node.Type == workflow.TypeIfElse {
			branch := "false"
			if truth, ok := output["condition_result"].(bool); ok && truth {
				branch = "true"
			}
			w.activate(id, &branch)
			continue
		}
		w.activate(id, nil)
	}
	return summary, w.outputs
}

// executeNode dispatches one node, tracing the call. Control-flow types are
// handled here; leaf types go through their registered service.
func (e *Engine) executeNode(ctx context.Context, state *runs.State, w *walk, node workflow.Node, inputs map[string]any, depth int) (map[string]any, error) {
	ctx, span := observability.StartSpan(ctx, "engine.node")
	defer span.End()
	observability.SetSpanAttribute(ctx, "node.id", node.ID)
	observability.SetSpanAttribute(ctx, "node.type", string(node.Type))

	var output map[string]any
	var err error
	switch node.Type {
	case workflow.TypeForEach:
		output, err = e.executeForEach(ctx, state, w, node, inputs, depth)
	case workflow.TypeWorkflow:
		output, err = e.executeSubworkflow(ctx, state, node, inputs, depth)
	case workflow.TypeMerge:
		output, err = e.executeMerge(ctx, w, node)
	default:
		output, err = e.executeLeaf(ctx, node, inputs)
	}
	if err != nil {
		observability.SetSpanError(ctx, err)
		if e.metrics != nil {
			e.metrics.RecordError(ctx, "node_execution", string(node.Type))
		}
	}
	return output, err
}

func (e *Engine) executeLeaf(ctx context.Context, node workflow.Node, inputs map[string]any) (output map[string]any, err error) {
	svc, err := e.services.Get(node.Type)
	if err != nil {
		return nil, err
	}
	// A panicking service must fail the node, not the process; the node's
	// on_error policy decides what happens to the run.
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = errors.NodeExecution(node.ID, string(node.Type), fmt.Errorf("panic: %v", r))
		}
	}()
	output, err = svc.Execute(ctx, inputs, node.Metadata)
	if err != nil {
		return nil, errors.NodeExecution(node.ID, string(node.Type), err)
	}
	if output == nil {
		output = map[string]any{}
	}
	return output, nil
}

// executeMerge combines the direct parents' actual outputs per the node's
// strategy. Parents are taken in topo order so union's last-writer rule is
// deterministic.
func (e *Engine) executeMerge(_ context.Context, w *walk, node workflow.Node) (map[string]any, error) {
	meta, err := nodes.ParseMerge(node.Metadata)
	if err != nil {
		return nil, errors.NodeConfig("merge", err.Error())
	}

	topoIndex := make(map[int64]int, len(w.topo))
	for i, id := range w.topo {
		topoIndex[id] = i
	}
	parents := make([]int64, 0, len(w.incoming[node.ID]))
	for _, edge := range w.incoming[node.ID] {
		parents = append(parents, edge.ParentID)
	}
	for i := 1; i < len(parents); i++ {
		for j := i; j > 0 && topoIndex[parents[j]] < topoIndex[parents[j-1]]; j-- {
			parents[j], parents[j-1] = parents[j-1], parents[j]
		}
	}

	ordered := make([]map[string]any, 0, len(parents))
	for _, parentID := range parents {
		if out, ok := w.outputs[parentID]; ok {
			ordered = append(ordered, out)
		}
	}
	combined := nodes.MergeOutputs(meta.MergeStrategy(), ordered)
	merged := make(map[string]any, len(combined)+1)
	for k, v := range combined {
		merged[k] = v
	}
	merged["merged_data"] = combined
	return merged, nil
}

// handleNodeError applies the node's on_error policy. Returns true when the
// run must stop.
func (e *Engine) handleNodeError(state *runs.State, w *walk, node workflow.Node, err error, summary *runSummary) bool {
	policy := nodes.ParseCommon(node.Metadata).Policy()
	e.emit(state, runs.Error("node_error", map[string]any{
		"node_id":   node.ID,
		"node_type": string(node.Type),
		"error":     err.Error(),
		"on_error":  string(policy),
	}))

	switch policy {
	case workflow.OnErrorSkip:
		// Outbound edges stay inactive: descendants that depend only on
		// this node are skipped as the walk reaches them.
		summary.skipped++
		return false
	case workflow.OnErrorContinue:
		summary.executed++
		w.outputs[node.ID] = map[string]any{}
		w.activate(node.ID, nil)
		return false
	default:
		summary.failed = true
		return true
	}
}

// resolveInputs merges starting inputs with every executed ancestor's
// actual output, later ancestors overwriting earlier keys.
func (e *Engine) resolveInputs(w *walk, id int64, startingInputs map[string]any) map[string]any {
	nodeList := make([]workflow.Node, 0, len(w.nodes))
	for _, n := range w.nodes {
		nodeList = append(nodeList, n)
	}
	ancestors := dag.AvailableData(id, w.outputs, nodeList, w.edges)

	inputs := make(map[string]any, len(startingInputs)+len(ancestors))
	for k, v := range startingInputs {
		inputs[k] = v
	}
	for k, v := range ancestors {
		inputs[k] = v
	}
	return inputs
}

// executeForEach evaluates the item selector, then drives the successor
// subgraph once per item, sequentially and fail-fast. The subgraph's nodes
// are settled afterwards so the outer walk does not run them again.
func (e *Engine) executeForEach(ctx context.Context, state *runs.State, w *walk, node workflow.Node, inputs map[string]any, depth int) (map[string]any, error) {
	meta, err := nodes.ParseForEach(node.Metadata)
	if err != nil {
		return nil, errors.NodeConfig("for_each", err.Error())
	}

	items, err := nodes.SelectForEachItems(ctx, meta, inputs, e.timeout)
	if err != nil {
		return nil, err
	}

	sub := w.descendants(node.ID)
	subNodes := make([]workflow.Node, 0, len(sub))
	var subEdges []workflow.Edge
	for _, id := range w.topo {
		if _, ok := sub[id]; ok {
			subNodes = append(subNodes, w.nodes[id])
		}
	}
	for _, edge := range w.edges {
		_, parentIn := sub[edge.ParentID]
		_, childIn := sub[edge.ChildID]
		if parentIn && childIn {
			subEdges = append(subEdges, edge)
		}
	}
	subTopo := make([]int64, 0, len(subNodes))
	for _, id := range w.topo {
		if _, ok := sub[id]; ok {
			subTopo = append(subTopo, id)
		}
	}

	results := make([]any, 0, len(items))
	for i, item := range items {
		if state.Cancelled() {
			return nil, errors.New(errors.ErrCodeRunCancelled, "run cancelled during for_each", 499)
		}
		itemInputs := make(map[string]any, len(inputs)+2)
		for k, v := range inputs {
			itemInputs[k] = v
		}
		itemInputs["item"] = item
		itemInputs["index"] = i

		e.emit(state, runs.Info("for_each_item", map[string]any{
			"node_id": node.ID,
			"index":   i,
		}))

		itemSummary, itemOutputs := e.executeGraph(ctx, state, subNodes, subEdges, subTopo, itemInputs, depth)
		if itemSummary.failed {
			return nil, errors.NodeExecution(node.ID, "for_each",
				fmt.Errorf("item %d failed", i))
		}
		results = append(results, sinkOutputs(subNodes, subEdges, itemOutputs))
	}

	for id := range sub {
		w.settled[id] = true
	}

	if meta.FlattenResults() {
		flat := make([]any, 0, len(results))
		for _, r := range results {
			if arr, ok := r.([]any); ok {
				flat = append(flat, arr...)
				continue
			}
			flat = append(flat, r)
		}
		results = flat
	}
	return map[string]any{"results": results, "count": len(items)}, nil
}

// sinkOutputs merges the outputs of the subgraph's terminal nodes (no
// outgoing edge within the subgraph) into one per-item result.
func sinkOutputs(subNodes []workflow.Node, subEdges []workflow.Edge, outputs map[int64]map[string]any) any {
	hasChild := make(map[int64]bool)
	for _, e := range subEdges {
		hasChild[e.ParentID] = true
	}
	merged := make(map[string]any)
	for _, n := range subNodes {
		if hasChild[n.ID] {
			continue
		}
		for k, v := range outputs[n.ID] {
			merged[k] = v
		}
	}
	return merged
}

// executeSubworkflow resolves and runs a workflow-typed node's target graph
// inside the current run.
func (e *Engine) executeSubworkflow(ctx context.Context, state *runs.State, node workflow.Node, inputs map[string]any, depth int) (map[string]any, error) {
	if e.resolver == nil {
		return nil, errors.NodeConfig("workflow", "no sub-workflow resolver configured")
	}
	if depth >= e.maxDepth {
		return nil, errors.NodeConfig("workflow",
			fmt.Sprintf("sub-workflow nesting exceeds %d levels", e.maxDepth))
	}
	meta, err := nodes.ParseWorkflowCall(node.Metadata)
	if err != nil {
		return nil, errors.NodeConfig("workflow", err.Error())
	}

	subNodes, subEdges, err := e.resolver.Resolve(ctx, meta.WorkflowID)
	if err != nil {
		return nil, errors.NodeExecution(node.ID, "workflow", err)
	}
	validation := dag.Validate(subNodes, subEdges, workflow.Trigger{IsAPI: true})
	if !validation.OK() {
		return nil, errors.DagInvalid(len(validation.Errors)).
			WithDetail("workflow_id", meta.WorkflowID)
	}

	subInputs := inputs
	if len(meta.InputMapping) > 0 {
		subInputs = nodes.MapSubworkflowInputs(ctx, meta, inputs, nodes.Deps{ExprTimeout: e.timeout})
	}

	e.emit(state, runs.Info("subworkflow_start", map[string]any{
		"node_id":     node.ID,
		"workflow_id": meta.WorkflowID,
	}))
	summary, _ := e.executeGraph(ctx, state, subNodes, subEdges, validation.TopoOrder, subInputs, depth+1)
	if summary.failed {
		return nil, errors.NodeExecution(node.ID, "workflow",
			fmt.Errorf("sub-workflow %d failed", meta.WorkflowID))
	}
	return map[string]any{"output": map[string]any{
		"workflow_id":    meta.WorkflowID,
		"nodes_executed": summary.executed,
	}}, nil
}
