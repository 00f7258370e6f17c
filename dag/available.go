package dag

import (
	"github.com/josephdodge8141/aspen-backend/nodes"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// AvailableData merges the real outputs of every transitive ancestor of
// targetID, in topological order: when two ancestors produce the same key,
// the one later in the topo order wins, matching the planner's collision
// rule. The executor uses this to resolve a node's actual input.
func AvailableData(targetID int64, outputsByNode map[int64]map[string]any, nodeList []workflow.Node, edges []workflow.Edge) map[string]any {
	g := buildGraph(nodeList, edges)
	anc := g.ancestors(targetID)
	merged := make(map[string]any)
	for _, id := range ancestorsInTopoOrder(g, anc) {
		for key, value := range outputsByNode[id] {
			merged[key] = value
		}
	}
	return merged
}

// ancestorsInTopoOrder filters the topo order down to the given ancestor
// set. A cyclic graph never reaches execution, but fall back to ascending
// id order rather than dropping data.
func ancestorsInTopoOrder(g *graph, anc map[int64]struct{}) []int64 {
	order, acyclic := g.topoSort()
	if !acyclic {
		return sortedIDs(anc)
	}
	ordered := make([]int64, 0, len(anc))
	for _, id := range order {
		if _, ok := anc[id]; ok {
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// AvailableDataMap computes, for every node, the union of all transitive
// ancestors' planned output shapes. Configuration tooling uses it to show
// what data a node could reference; an acyclic graph is required, a cyclic
// one yields an empty map.
func AvailableDataMap(nodeList []workflow.Node, edges []workflow.Edge, registry *nodes.Registry) map[int64]workflow.Shape {
	if len(nodeList) == 0 {
		return map[int64]workflow.Shape{}
	}
	g := buildGraph(nodeList, edges)
	order, acyclic := g.topoSort()
	if !acyclic {
		return map[int64]workflow.Shape{}
	}

	outputShapes := make(map[int64]workflow.Shape, len(nodeList))
	available := make(map[int64]workflow.Shape, len(nodeList))

	for _, id := range order {
		node := g.nodes[id]

		merged := workflow.Shape{}
		anc := g.ancestors(id)
		// order is already topological, so later writers win on collisions,
		// consistent with the planner and with execution-time resolution.
		for _, ancestor := range order {
			if _, ok := anc[ancestor]; !ok {
				continue
			}
			for key, value := range outputShapes[ancestor] {
				merged[key] = value
			}
		}
		available[id] = merged

		shape, err := planOutputShape(node, merged, registry)
		if err != nil {
			shape = workflow.Shape{}
		}
		outputShapes[id] = shape
	}
	return available
}
