package api

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/observability"
	"github.com/josephdodge8141/aspen-backend/runs"
	"github.com/josephdodge8141/aspen-backend/server"
	"github.com/josephdodge8141/aspen-backend/validation"
)

type startRunRequest struct {
	graphRequest
	Kind           string         `json:"kind"`
	StartingInputs map[string]any `json:"starting_inputs"`
}

// startRun launches a run in the background and returns its id; callers
// follow progress on the stream endpoint. Kind defaults to "workflow";
// expert chat surfaces pass "expert" so their runs are labeled as such.
func (h *Handlers) startRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if req.Kind == "" {
		req.Kind = string(runs.KindWorkflow)
	}
	v := validation.New().
		OneOf("kind", req.Kind, []string{string(runs.KindWorkflow), string(runs.KindExpert)})
	if err := v.Validate(); err != nil {
		server.RespondWithError(c, err)
		return
	}
	oc := observability.NewOperationContext("api", "run.start", c.GetString("request_id"), "", h.metrics)
	ctx, span := oc.StartSpanForOperation(c.Request.Context(), "api.run.start")

	runID, err := h.engine.Start(ctx, runs.Kind(req.Kind), req.Nodes, req.Edges, req.StartingInputs)
	if err != nil {
		oc.EndOperation(ctx, span, "error", err)
		server.RespondWithError(c, err)
		return
	}
	observability.SetSpanAttribute(ctx, observability.AttrRunID, runID)
	oc.EndOperation(ctx, span, "accepted", nil)
	server.RespondAccepted(c, gin.H{"run_id": runID})
}

// runIDParam validates the :id path parameter before any registry lookup.
// Run ids are always UUIDs, so anything else is a 400, not a 404.
func runIDParam(c *gin.Context) (string, bool) {
	runID := c.Param("id")
	if _, err := validation.ValidateUUID("run_id", runID); err != nil {
		server.RespondWithError(c, err)
		return "", false
	}
	return runID, true
}

// getRun returns a snapshot of the run's full event log and status. The
// stream endpoint is the incremental view of the same data.
func (h *Handlers) getRun(c *gin.Context) {
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	state := h.runs.Get(runID)
	if state == nil {
		server.RespondWithError(c, apperrors.NotFound("run", runID))
		return
	}
	server.RespondOK(c, gin.H{
		"run_id":      state.RunID,
		"kind":        state.Kind,
		"started_at":  state.StartedAt,
		"finished_at": state.FinishedTime(),
		"finished":    state.Finished(),
		"cancelled":   state.Cancelled(),
		"events":      state.Events(),
	})
}

func (h *Handlers) cancelRun(c *gin.Context) {
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	if h.runs.Get(runID) == nil {
		server.RespondWithError(c, apperrors.NotFound("run", runID))
		return
	}
	cancelled := h.runs.Cancel(runID)
	server.RespondOK(c, gin.H{"run_id": runID, "cancelled": cancelled})
}
