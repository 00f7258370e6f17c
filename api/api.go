// Package api exposes the workflow graph operations over HTTP: validation,
// shape planning, run execution, run streaming, and stored workflow
// management.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/josephdodge8141/aspen-backend/engine"
	"github.com/josephdodge8141/aspen-backend/logger"
	"github.com/josephdodge8141/aspen-backend/nodes"
	"github.com/josephdodge8141/aspen-backend/observability"
	"github.com/josephdodge8141/aspen-backend/runs"
	"github.com/josephdodge8141/aspen-backend/sse"
	"github.com/josephdodge8141/aspen-backend/store"
)

// Handlers carries the wired dependencies for every API route.
type Handlers struct {
	services *nodes.Registry
	engine   *engine.Engine
	runs     *runs.Registry
	store    store.Store
	hub      *sse.Hub
	log      *logger.Logger
	metrics  *observability.Metrics
}

// Option configures Handlers.
type Option func(*Handlers)

// WithStore enables the stored-workflow routes.
func WithStore(s store.Store) Option {
	return func(h *Handlers) { h.store = s }
}

// WithHub enables the live run event feed backed by the SSE hub.
func WithHub(hub *sse.Hub) Option {
	return func(h *Handlers) { h.hub = hub }
}

// WithLogger overrides the handlers' logger.
func WithLogger(log *logger.Logger) Option {
	return func(h *Handlers) { h.log = log }
}

// WithMetrics enables request metrics on the run-start path.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handlers) { h.metrics = m }
}

// New builds the handler set.
func New(services *nodes.Registry, eng *engine.Engine, runRegistry *runs.Registry, opts ...Option) *Handlers {
	h := &Handlers{
		services: services,
		engine:   eng,
		runs:     runRegistry,
		log:      logger.NewDefault("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts every route under /api/v1.
func (h *Handlers) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")

	graph := v1.Group("/graph")
	graph.POST("/validate", h.validateGraph)
	graph.POST("/plan", h.planGraph)
	graph.POST("/available-data", h.availableData)

	v1.GET("/node-types", h.listNodeTypes)
	v1.POST("/nodes/validate", h.validateNode)
	v1.POST("/expressions/check", h.checkExpression)

	runGroup := v1.Group("/runs")
	runGroup.POST("", h.startRun)
	runGroup.GET("/:id", h.getRun)
	runGroup.GET("/:id/stream", h.streamRun)
	runGroup.POST("/:id/cancel", h.cancelRun)
	if h.hub != nil {
		runGroup.GET("/:id/events", h.liveRunEvents)
	}

	if h.store != nil {
		wf := v1.Group("/workflows")
		wf.POST("", h.createWorkflow)
		wf.GET("", h.listWorkflows)
		wf.GET("/:id", h.getWorkflow)
		wf.DELETE("/:id", h.deleteWorkflow)
		wf.POST("/:id/run", h.runWorkflow)
	}
}
