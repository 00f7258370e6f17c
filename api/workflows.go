package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/josephdodge8141/aspen-backend/dag"
	apperrors "github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/runs"
	"github.com/josephdodge8141/aspen-backend/server"
	"github.com/josephdodge8141/aspen-backend/util"
	"github.com/josephdodge8141/aspen-backend/validation"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

type createWorkflowRequest struct {
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	InputParams  map[string]any  `json:"input_params"`
	IsAPI        bool            `json:"is_api"`
	CronSchedule string          `json:"cron_schedule"`
	TeamID       int64           `json:"team_id"`
	Nodes        []workflow.Node `json:"nodes" binding:"required"`
	Edges        []workflow.Edge `json:"edges"`
}

// createWorkflow validates the graph before persisting; a workflow that
// cannot run is not worth storing.
func (h *Handlers) createWorkflow(c *gin.Context) {
	var req createWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	v := validation.New().
		Required("name", req.Name).
		MaxLength("name", req.Name, 255).
		MaxLength("description", req.Description, 2000)
	if err := v.Validate(); err != nil {
		server.RespondWithError(c, err)
		return
	}

	wf := workflow.Workflow{
		Name:         util.SanitizeString(req.Name),
		Description:  util.SanitizeString(req.Description),
		InputParams:  req.InputParams,
		IsAPI:        req.IsAPI,
		CronSchedule: req.CronSchedule,
		TeamID:       req.TeamID,
	}
	result := dag.Validate(req.Nodes, req.Edges, wf.Trigger())
	if !result.OK() {
		server.RespondWithError(c, apperrors.DagInvalid(len(result.Errors)).
			WithDetail("errors", result.Errors))
		return
	}

	created, err := h.store.CreateWorkflow(c.Request.Context(), wf, req.Nodes, req.Edges)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, created)
}

func (h *Handlers) listWorkflows(c *gin.Context) {
	all, err := h.store.ListWorkflows(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, gin.H{"workflows": all})
}

func (h *Handlers) getWorkflow(c *gin.Context) {
	id, err := workflowID(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	wf, err := h.store.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	nodes, edges, err := h.store.GetGraph(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, gin.H{"workflow": wf, "nodes": nodes, "edges": edges})
}

func (h *Handlers) deleteWorkflow(c *gin.Context) {
	id, err := workflowID(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.store.DeleteWorkflow(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

type runWorkflowRequest struct {
	StartingInputs map[string]any `json:"starting_inputs"`
}

// runWorkflow launches a stored workflow's graph.
func (h *Handlers) runWorkflow(c *gin.Context) {
	id, err := workflowID(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	var req runWorkflowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
			return
		}
	}

	nodes, edges, err := h.store.GetGraph(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	runID, err := h.engine.Start(c.Request.Context(), runs.KindWorkflow, nodes, edges, req.StartingInputs)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondAccepted(c, gin.H{"run_id": runID, "workflow_id": id})
}

func workflowID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperrors.InvalidInput("id", "must be an integer")
	}
	return id, nil
}
