package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/server"
	"github.com/josephdodge8141/aspen-backend/sse"
)

// popTimeout is how long one stream iteration waits for the next event
// before emitting a keep-alive. Kept well under typical proxy timeouts.
const popTimeout = 15 * time.Second

// streamRun streams a run's events over SSE: the backlog first, then live
// events as they are produced, a heartbeat comment whenever the run is
// quiet, and a terminal done event once the run has finished and the log
// is drained.
func (h *Handlers) streamRun(c *gin.Context) {
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	if h.runs.Get(runID) == nil {
		server.RespondWithError(c, apperrors.NotFound("run", runID))
		return
	}

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		server.RespondWithError(c, apperrors.Internal(fmt.Errorf("streaming not supported")))
		return
	}

	// Run streams outlive the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Warn("could not disable write deadline", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	ctx := c.Request.Context()
	for {
		if ctx.Err() != nil {
			return
		}

		// A finished run only has its backlog left; don't sit in a long
		// wait before noticing the drain.
		wait := popTimeout
		if state := h.runs.Get(runID); state != nil && state.Finished() {
			wait = 100 * time.Millisecond
		}

		ev, ok := h.runs.PopNext(runID, wait)
		if !ok {
			state := h.runs.Get(runID)
			if state == nil {
				// Evicted mid-stream.
				_, _ = fmt.Fprintf(w, "event: %s\ndata: {\"error\":\"run expired\"}\n\n", sse.EventTypeError)
				flusher.Flush()
				return
			}
			if state.Finished() {
				_, _ = fmt.Fprintf(w, "event: %s\ndata: {\"run_id\":%q}\n\n", sse.EventTypeDone, runID)
				flusher.Flush()
				return
			}
			_, _ = fmt.Fprintf(w, ": %s %d\n\n", sse.EventTypeKeepAlive, time.Now().Unix())
			flusher.Flush()
			continue
		}

		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", sse.EventTypeRunEvent, data)
		flusher.Flush()
	}
}

// liveRunEvents attaches an observer to the hub's live feed for one run.
// Unlike streamRun this holds no read cursor: many observers can watch the
// same run, but none of them see events sent before they connected.
func (h *Handlers) liveRunEvents(c *gin.Context) {
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	if h.runs.Get(runID) == nil {
		server.RespondWithError(c, apperrors.NotFound("run", runID))
		return
	}
	clientID := sse.RunChannel(runID) + uuid.NewString()
	sse.ServeSSE(h.hub, c.Writer, c.Request, clientID, sse.WithRunID(runID))
}
