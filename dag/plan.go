package dag

import (
	"fmt"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/nodes"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// PlannedNode is the planner's projection of one node: what data it will
// see and what it is expected to produce. Purely advisory; nothing runs.
type PlannedNode struct {
	NodeID      int64             `json:"node_id"`
	NodeType    workflow.NodeType `json:"node_type"`
	InputShape  workflow.Shape    `json:"input_shape"`
	OutputShape workflow.Shape    `json:"output_shape"`
	Notes       []string          `json:"notes"`
}

// Plan walks the graph in topo order and propagates data shapes. The graph
// must already validate; a structurally invalid graph is an immediate error
// rather than a half-meaningful plan.
func Plan(nodeList []workflow.Node, edges []workflow.Edge, startingInputs map[string]any, registry *nodes.Registry) ([]PlannedNode, error) {
	validation := Validate(nodeList, edges, workflow.Trigger{IsAPI: true})
	if !validation.OK() {
		return nil, errors.DagInvalid(len(validation.Errors)).
			WithDetail("errors", validation.Errors)
	}
	if len(nodeList) == 0 {
		return []PlannedNode{}, nil
	}

	g := buildGraph(nodeList, edges)
	topoIndex := make(map[int64]int, len(validation.TopoOrder))
	for i, id := range validation.TopoOrder {
		topoIndex[id] = i
	}

	startShape := workflow.ShapeOf(startingInputs)
	outputShapes := make(map[int64]workflow.Shape, len(nodeList))
	planned := make([]PlannedNode, 0, len(nodeList))

	for _, id := range validation.TopoOrder {
		node := g.nodes[id]
		notes := []string{}

		inputShape, collisionNotes := mergeParentShapes(g, id, topoIndex, outputShapes, startShape)
		notes = append(notes, collisionNotes...)

		outputShape, err := planOutputShape(node, inputShape, registry)
		if err != nil {
			return nil, err
		}
		outputShapes[id] = outputShape

		planned = append(planned, PlannedNode{
			NodeID:      id,
			NodeType:    node.Type,
			InputShape:  inputShape,
			OutputShape: outputShape,
			Notes:       notes,
		})
	}
	return planned, nil
}

// mergeParentShapes union-merges the parents' output shapes in topo-index
// order. The later parent wins a conflicting key; the collision is noted
// with both parent ids so the UI can flag it.
func mergeParentShapes(g *graph, id int64, topoIndex map[int64]int, outputShapes map[int64]workflow.Shape, startShape workflow.Shape) (workflow.Shape, []string) {
	parents := g.incoming[id]
	if len(parents) == 0 {
		shape := make(workflow.Shape, len(startShape))
		for k, v := range startShape {
			shape[k] = v
		}
		return shape, nil
	}

	ordered := append([]int64(nil), parents...)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && topoIndex[ordered[j]] < topoIndex[ordered[j-1]]; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	shape := workflow.Shape{}
	firstSeen := make(map[string]int64)
	var notes []string
	for _, parentID := range ordered {
		for key, value := range outputShapes[parentID] {
			if prev, ok := shape[key]; ok && !shapeEqual(prev, value) {
				notes = append(notes,
					fmt.Sprintf("field %q has conflicting types from parents %d and %d", key, firstSeen[key], parentID))
			}
			if _, ok := firstSeen[key]; !ok {
				firstSeen[key] = parentID
			}
			shape[key] = value
		}
	}
	return shape, notes
}

// planOutputShape prefers the declared structured_output; otherwise the
// node's service supplies an indicative shape.
func planOutputShape(node workflow.Node, inputShape workflow.Shape, registry *nodes.Registry) (workflow.Shape, error) {
	if len(node.StructuredOutput) > 0 {
		return workflow.ShapeFromSchema(node.StructuredOutput), nil
	}
	svc, err := registry.Get(node.Type)
	if err != nil {
		return nil, err
	}
	return svc.Plan(node.Metadata, inputShape, node.StructuredOutput), nil
}

func shapeEqual(a, b any) bool {
	as, aIsString := a.(string)
	bs, bIsString := b.(string)
	if aIsString && bIsString {
		return as == bs
	}
	am, aIsMap := a.(map[string]any)
	bm, bIsMap := b.(map[string]any)
	if !aIsMap || !bIsMap {
		return aIsString == bIsString && aIsMap == bIsMap
	}
	if len(am) != len(bm) {
		return false
	}
	for k, av := range am {
		bv, ok := bm[k]
		if !ok || !shapeEqual(av, bv) {
			return false
		}
	}
	return true
}
