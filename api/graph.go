package api

import (
	"github.com/gin-gonic/gin"

	"github.com/josephdodge8141/aspen-backend/dag"
	apperrors "github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/expr"
	"github.com/josephdodge8141/aspen-backend/server"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

type graphRequest struct {
	Nodes   []workflow.Node   `json:"nodes" binding:"required"`
	Edges   []workflow.Edge   `json:"edges"`
	Trigger *workflow.Trigger `json:"trigger"`
}

func (r graphRequest) trigger() workflow.Trigger {
	if r.Trigger != nil {
		return *r.Trigger
	}
	return workflow.Trigger{}
}

type planRequest struct {
	graphRequest
	StartingInputs map[string]any `json:"starting_inputs"`
}

func (h *Handlers) validateGraph(c *gin.Context) {
	var req graphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	server.RespondOK(c, dag.Validate(req.Nodes, req.Edges, req.trigger()))
}

func (h *Handlers) planGraph(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	planned, err := dag.Plan(req.Nodes, req.Edges, req.StartingInputs, h.services)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, gin.H{"nodes": planned})
}

func (h *Handlers) availableData(c *gin.Context) {
	var req graphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	server.RespondOK(c, gin.H{
		"available": dag.AvailableDataMap(req.Nodes, req.Edges, h.services),
	})
}

func (h *Handlers) listNodeTypes(c *gin.Context) {
	server.RespondOK(c, gin.H{"node_types": h.services.Types()})
}

type nodeValidateRequest struct {
	NodeType         workflow.NodeType `json:"node_type" binding:"required"`
	Metadata         map[string]any    `json:"metadata"`
	StructuredOutput map[string]any    `json:"structured_output"`
}

func (h *Handlers) validateNode(c *gin.Context) {
	var req nodeValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	svc, err := h.services.Get(req.NodeType)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := svc.Validate(req.Metadata, req.StructuredOutput); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, gin.H{"valid": true})
}

type expressionCheckRequest struct {
	Expression string `json:"expression" binding:"required"`
	IsTemplate bool   `json:"is_template"`
}

func (h *Handlers) checkExpression(c *gin.Context) {
	var req expressionCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	var err error
	if req.IsTemplate {
		err = expr.CheckTemplate(req.Expression, "expression")
	} else {
		err = expr.Check(req.Expression)
	}
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, gin.H{"valid": true})
}
