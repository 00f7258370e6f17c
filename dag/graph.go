package dag

import (
	"container/heap"

	"github.com/josephdodge8141/aspen-backend/workflow"
)

// graph holds the adjacency view shared by validation, planning, and
// available-data resolution.
type graph struct {
	nodes    map[int64]workflow.Node
	order    []int64 // node ids in input order
	outgoing map[int64][]workflow.Edge
	incoming map[int64][]int64
}

func buildGraph(nodes []workflow.Node, edges []workflow.Edge) *graph {
	g := &graph{
		nodes:    make(map[int64]workflow.Node, len(nodes)),
		order:    make([]int64, 0, len(nodes)),
		outgoing: make(map[int64][]workflow.Edge),
		incoming: make(map[int64][]int64),
	}
	for _, n := range nodes {
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	for _, e := range edges {
		g.outgoing[e.ParentID] = append(g.outgoing[e.ParentID], e)
		g.incoming[e.ChildID] = append(g.incoming[e.ChildID], e.ParentID)
	}
	return g
}

func (g *graph) indegree(id int64) int  { return len(g.incoming[id]) }
func (g *graph) outdegree(id int64) int { return len(g.outgoing[id]) }

// topoSort runs Kahn's algorithm with a min-heap over node ids, so equal
// graphs always produce the same order. The second return value is false
// when a cycle prevents a complete order.
func (g *graph) topoSort() ([]int64, bool) {
	indegree := make(map[int64]int, len(g.nodes))
	for _, id := range g.order {
		indegree[id] = g.indegree(id)
	}

	ready := &idHeap{}
	heap.Init(ready)
	for _, id := range g.order {
		if indegree[id] == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]int64, 0, len(g.nodes))
	for ready.Len() > 0 {
		current := heap.Pop(ready).(int64)
		order = append(order, current)
		for _, e := range g.outgoing[current] {
			indegree[e.ChildID]--
			if indegree[e.ChildID] == 0 {
				heap.Push(ready, e.ChildID)
			}
		}
	}
	return order, len(order) == len(g.nodes)
}

// ancestors returns every node reachable walking edges backwards from id.
func (g *graph) ancestors(id int64) map[int64]struct{} {
	seen := map[int64]struct{}{id: {}}
	result := make(map[int64]struct{})
	queue := []int64{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, parent := range g.incoming[current] {
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			result[parent] = struct{}{}
			queue = append(queue, parent)
		}
	}
	return result
}

// findCyclePath returns one representative cycle as an ordered id path
// (first id repeated at the end), searching only the nodes Kahn's algorithm
// could not process.
func (g *graph) findCyclePath(processed []int64) []int64 {
	done := make(map[int64]struct{}, len(processed))
	for _, id := range processed {
		done[id] = struct{}{}
	}

	visited := make(map[int64]struct{})
	onStack := make(map[int64]struct{})
	var path []int64
	var cycle []int64

	var dfs func(id int64) bool
	dfs = func(id int64) bool {
		if _, ok := onStack[id]; ok {
			for i, p := range path {
				if p == id {
					cycle = append(append([]int64(nil), path[i:]...), id)
					return true
				}
			}
			return false
		}
		if _, ok := visited[id]; ok {
			return false
		}
		visited[id] = struct{}{}
		onStack[id] = struct{}{}
		path = append(path, id)
		for _, e := range g.outgoing[id] {
			if dfs(e.ChildID) {
				return true
			}
		}
		delete(onStack, id)
		path = path[:len(path)-1]
		return false
	}

	for _, id := range g.order {
		if _, ok := done[id]; ok {
			continue
		}
		if dfs(id) {
			return cycle
		}
	}
	return nil
}

// idHeap is a min-heap of node ids.
type idHeap []int64

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)         { *h = append(*h, x.(int64)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
