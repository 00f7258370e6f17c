// Package nodes provides the per-node-type service registry: one
// implementation of validate/plan/execute for each of the fifteen node types.
//
// The type set is closed. The registry is populated once at process start and
// a lookup for an unregistered type is a fatal configuration error, not a
// silent no-op. Metadata contracts are closed too: unknown top-level keys are
// rejected during validation so configuration drift is caught early.
//
// Node types fall into three groups. AI nodes (job, embed) call a model or
// embedding client. Resource nodes (guru, get_api, post_api, vector_query)
// call external systems. Action nodes (the rest) are pure data-shaping or
// control-flow steps over the merged input; the control-flow ones (if_else,
// for_each, merge, workflow) are driven by the engine rather than by their
// own Execute.
package nodes
