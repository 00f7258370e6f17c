// Package dag validates and plans workflow graphs.
//
// Validation is a single pass that never fails: every structural problem is
// reported in ValidationResult.Errors so an editing UI can render a graph
// that breaks only some rules. Planning walks the validated graph in
// deterministic topological order and propagates advisory data shapes
// without executing anything. The available-data resolver answers "what can
// this node see" both for planned shapes (configuration tooling) and for
// real outputs (the run executor).
package dag
