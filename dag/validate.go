package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/josephdodge8141/aspen-backend/util"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// ValidationResult reports every structural problem in a graph. TopoOrder is
// meaningful only when Errors is empty.
type ValidationResult struct {
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
	TopoOrder []int64  `json:"topo_order"`
}

// OK reports whether the graph passed every structural rule.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate checks a workflow graph against the structural rules. It never
// fails: every rule is evaluated even when an earlier one already reported,
// so an editor can show all problems at once.
func Validate(nodes []workflow.Node, edges []workflow.Edge, trigger workflow.Trigger) ValidationResult {
	result := ValidationResult{Errors: []string{}, Warnings: []string{}, TopoOrder: []int64{}}
	if len(nodes) == 0 {
		if !trigger.Configured() {
			result.Warnings = append(result.Warnings, "no trigger configured")
		}
		return result
	}

	g := buildGraph(nodes, edges)

	// Cycle detection first: no topo order is produced when a cycle exists.
	order, acyclic := g.topoSort()
	if !acyclic {
		cycle := g.findCyclePath(order)
		result.Errors = append(result.Errors,
			fmt.Sprintf("cycle detected in graph: %s", joinIDs(cycle)))
	} else {
		result.TopoOrder = order
	}

	// Fan-in: only merge nodes may have multiple parents.
	for _, id := range g.order {
		node := g.nodes[id]
		if deg := g.indegree(id); deg > 1 && node.Type != workflow.TypeMerge {
			result.Errors = append(result.Errors,
				fmt.Sprintf("node %d (type %s) has %d parents but is not a merge node", id, node.Type, deg))
		}
	}

	// Return placement.
	for _, id := range g.order {
		node := g.nodes[id]
		if node.Type != workflow.TypeReturn {
			continue
		}
		if g.indegree(id) == 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("return node %d has no incoming edges", id))
		}
		if g.outdegree(id) > 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("return node %d has outgoing edges", id))
		}
		for _, ancestor := range sortedIDs(g.ancestors(id)) {
			if g.nodes[ancestor].Type == workflow.TypeForEach {
				result.Errors = append(result.Errors,
					fmt.Sprintf("return node %d is nested under for_each node %d", id, ancestor))
				break
			}
		}
	}

	// Branch labels.
	for _, id := range g.order {
		node := g.nodes[id]
		children := g.outgoing[id]

		if node.Type == workflow.TypeIfElse {
			trueEdges, falseEdges := 0, 0
			for _, e := range children {
				switch util.Deref(e.BranchLabel) {
				case "true":
					trueEdges++
				case "false":
					falseEdges++
				default:
					result.Errors = append(result.Errors,
						fmt.Sprintf("if_else node %d has edge to %d with branch label %q, expected \"true\" or \"false\"", id, e.ChildID, util.Deref(e.BranchLabel)))
				}
			}
			if len(children) == 0 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("if_else node %d has no outgoing edges", id))
			} else if trueEdges != 1 || falseEdges != 1 {
				// Partial graphs stay editable; this is advisory.
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("if_else node %d should have exactly one true edge and one false edge (got %d true, %d false)", id, trueEdges, falseEdges))
			}
			continue
		}

		for _, e := range children {
			if e.BranchLabel != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("node %d (type %s) has edge to %d with branch label %q, but only if_else nodes label edges", id, node.Type, e.ChildID, *e.BranchLabel))
			}
		}
	}

	// Trigger sanity. Cron syntax itself is checked at the API boundary.
	if !trigger.Configured() {
		result.Warnings = append(result.Warnings, "no trigger configured")
	}

	if !result.OK() {
		result.TopoOrder = []int64{}
	}
	return result
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, " -> ")
}

// sortedIDs returns map keys in ascending order, for stable messages.
func sortedIDs(m map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
