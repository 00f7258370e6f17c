package dag

import (
	"testing"

	"github.com/josephdodge8141/aspen-backend/workflow"
)

func TestAvailableDataMergesAncestorOutputs(t *testing.T) {
	nodeList := []workflow.Node{
		node(1, workflow.TypeJob),
		node(2, workflow.TypeMap),
		node(3, workflow.TypeMap),
	}
	edges := []workflow.Edge{edge(1, 2), edge(2, 3)}

	outputs := map[int64]map[string]any{
		1: {"text": "hello", "score": 1},
		2: {"who": "ada", "score": 2},
	}
	got := AvailableData(3, outputs, nodeList, edges)
	if got["text"] != "hello" || got["who"] != "ada" {
		t.Errorf("available data = %v, want both ancestors merged", got)
	}
	if got["score"] != 2 {
		t.Errorf("score = %v, want the later ancestor's value", got["score"])
	}
}

func TestAvailableDataCollisionFollowsTopoOrder(t *testing.T) {
	// Node ids run against the topo order: 5 -> 3 -> 7. The downstream
	// writer (node 3) must win the colliding key even though its id is
	// lower than its ancestor's.
	nodeList := []workflow.Node{
		node(5, workflow.TypeJob),
		node(3, workflow.TypeMap),
		node(7, workflow.TypeMap),
	}
	edges := []workflow.Edge{edge(5, 3), edge(3, 7)}

	outputs := map[int64]map[string]any{
		5: {"value": "from-5"},
		3: {"value": "from-3"},
	}
	got := AvailableData(7, outputs, nodeList, edges)
	if got["value"] != "from-3" {
		t.Errorf("value = %v, want the topologically later writer's output", got["value"])
	}
}

func TestAvailableDataIgnoresNonAncestors(t *testing.T) {
	nodeList := []workflow.Node{
		node(1, workflow.TypeJob),
		node(2, workflow.TypeJob),
		node(3, workflow.TypeMap),
	}
	edges := []workflow.Edge{edge(1, 3)} // node 2 is unrelated

	outputs := map[int64]map[string]any{
		1: {"text": "from parent"},
		2: {"secret": "unreachable"},
	}
	got := AvailableData(3, outputs, nodeList, edges)
	if _, leaked := got["secret"]; leaked {
		t.Errorf("available data = %v, non-ancestor output leaked", got)
	}
	if got["text"] != "from parent" {
		t.Errorf("available data = %v, want the parent's output", got)
	}
}

func TestAvailableDataMapOverShapes(t *testing.T) {
	nodeList := []workflow.Node{
		node(1, workflow.TypeJob),
		node(2, workflow.TypeFilter),
	}
	edges := []workflow.Edge{edge(1, 2)}

	available := AvailableDataMap(nodeList, edges, testRegistry())
	if len(available[1]) != 0 {
		t.Errorf("entry node sees %v, want nothing", available[1])
	}
	if available[2]["text"] != "string" {
		t.Errorf("node 2 sees %v, want the job's planned output", available[2])
	}
}

func TestAvailableDataMapCyclicGraphIsEmpty(t *testing.T) {
	nodeList := []workflow.Node{node(1, workflow.TypeMap), node(2, workflow.TypeMap)}
	edges := []workflow.Edge{edge(1, 2), edge(2, 1)}

	available := AvailableDataMap(nodeList, edges, testRegistry())
	if len(available) != 0 {
		t.Errorf("cyclic graph produced %v, want an empty map", available)
	}
}
