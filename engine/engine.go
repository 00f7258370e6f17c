package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/josephdodge8141/aspen-backend/dag"
	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/logger"
	"github.com/josephdodge8141/aspen-backend/nodes"
	"github.com/josephdodge8141/aspen-backend/observability"
	"github.com/josephdodge8141/aspen-backend/runs"
	"github.com/josephdodge8141/aspen-backend/sse"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// SubworkflowResolver supplies the node/edge set of a workflow-typed node's
// target. The persistence layer implements this; tests fake it.
type SubworkflowResolver interface {
	Resolve(ctx context.Context, workflowID int64) ([]workflow.Node, []workflow.Edge, error)
}

// defaultMaxDepth bounds sub-workflow nesting. Cycle detection catches
// self-reference within one graph, not across workflow-call hops.
const defaultMaxDepth = 10

// Engine runs workflow graphs against the node service registry, recording
// every step in the runs registry.
type Engine struct {
	services  *nodes.Registry
	runs      *runs.Registry
	resolver  SubworkflowResolver
	broadcast sse.Broadcaster
	metrics   *observability.Metrics
	log       *logger.Logger
	timeout   time.Duration
	maxDepth  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver wires sub-workflow resolution for workflow-typed nodes.
func WithResolver(r SubworkflowResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithBroadcaster mirrors every run event onto an SSE hub so live observers
// can follow runs without holding the registry's read cursor.
func WithBroadcaster(b sse.Broadcaster) Option {
	return func(e *Engine) { e.broadcast = b }
}

// WithMetrics records run and node outcomes on the given instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the engine's logger.
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithExprTimeout bounds each control-flow expression evaluation.
func WithExprTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxDepth overrides the sub-workflow nesting bound.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// New builds an Engine.
func New(services *nodes.Registry, runRegistry *runs.Registry, opts ...Option) *Engine {
	e := &Engine{
		services: services,
		runs:     runRegistry,
		log:      logger.NewDefault("engine"),
		timeout:  100 * time.Millisecond,
		maxDepth: defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run validates the graph, creates a run, and executes it synchronously.
// The run id is returned even when execution fails; the failure lives in
// the run's events. Only a structurally invalid graph fails the call
// itself.
func (e *Engine) Run(ctx context.Context, kind runs.Kind, nodeList []workflow.Node, edges []workflow.Edge, startingInputs map[string]any) (string, error) {
	state, topo, err := e.prepare(kind, nodeList, edges)
	if err != nil {
		return "", err
	}
	e.run(ctx, state, nodeList, edges, topo, startingInputs)
	return state.RunID, nil
}

// Start validates the graph and launches execution in the background,
// returning the run id immediately so callers can stream events while the
// run is in flight. The execution outlives the caller's request context.
func (e *Engine) Start(ctx context.Context, kind runs.Kind, nodeList []workflow.Node, edges []workflow.Edge, startingInputs map[string]any) (string, error) {
	state, topo, err := e.prepare(kind, nodeList, edges)
	if err != nil {
		return "", err
	}
	go e.run(context.WithoutCancel(ctx), state, nodeList, edges, topo, startingInputs)
	return state.RunID, nil
}

func (e *Engine) prepare(kind runs.Kind, nodeList []workflow.Node, edges []workflow.Edge) (*runs.State, []int64, error) {
	if kind == "" {
		kind = runs.KindWorkflow
	}
	validation := dag.Validate(nodeList, edges, workflow.Trigger{IsAPI: true})
	if !validation.OK() {
		return nil, nil, errors.DagInvalid(len(validation.Errors)).
			WithDetail("errors", validation.Errors)
	}
	return e.runs.Create(kind), validation.TopoOrder, nil
}

func (e *Engine) run(ctx context.Context, state *runs.State, nodeList []workflow.Node, edges []workflow.Edge, topo []int64, startingInputs map[string]any) {
	log := e.log.WithFields(map[string]interface{}{"run_id": state.RunID})
	log.Info("run started", map[string]interface{}{"nodes": len(nodeList)})

	// Runs launched by Start execute in a bare goroutine; a stray panic here
	// must fail the run, never the process.
	defer func() {
		if r := recover(); r != nil {
			log.Error("run panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			e.emit(state, runs.Error("run failed", map[string]any{
				"status": "failed",
				"reason": fmt.Sprintf("internal error: %v", r),
			}))
			e.runs.Finish(state.RunID)
		}
	}()

	summary, _ := e.executeGraph(ctx, state, nodeList, edges, topo, startingInputs, 0)

	status := "succeeded"
	level := runs.Info
	if summary.failed {
		status = "failed"
		level = runs.Error
	}
	e.emit(state, level("run "+status, map[string]any{
		"status":         status,
		"nodes_executed": summary.executed,
		"nodes_skipped":  summary.skipped,
	}))
	e.runs.Finish(state.RunID)
	if e.metrics != nil {
		e.metrics.RecordOperation(ctx, "engine", "run", status, time.Since(state.StartedAt))
	}
	log.Info("run finished", map[string]interface{}{"status": status})
}

// emit records an event on the run and, when a hub is wired, mirrors it to
// live SSE observers under the run's channel pattern.
func (e *Engine) emit(state *runs.State, ev runs.Event) {
	e.runs.Append(state.RunID, ev)
	if e.broadcast == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"run_id": state.RunID,
		"event":  ev,
	})
	if err != nil {
		return
	}
	e.broadcast.BroadcastToPattern(sse.RunChannel(state.RunID)+"*", payload)
}
