// Package engine executes validated workflow graphs.
//
// Execution walks the topological order and activates edges as nodes
// complete: a node runs when at least one inbound edge is active, so an
// untaken if_else branch or a skipped node naturally deactivates everything
// that depends only on it. Control-flow node types (if_else, for_each,
// merge, workflow) are driven here; every other type executes through its
// registered service. All progress is reported as run events through the
// runs registry.
package engine
