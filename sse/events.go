// Package sse provides Server-Sent Events (SSE) support for real-time streaming.
package sse

// SSE event type constants used on run streams.
const (
	// EventTypeConnected is sent when a client successfully connects.
	EventTypeConnected = "connected"

	// EventTypeKeepAlive is used for keep-alive comments.
	EventTypeKeepAlive = "keepalive"

	// EventTypeRunEvent carries one run log entry.
	EventTypeRunEvent = "run_event"

	// EventTypeDone terminates a run stream once the run has finished.
	EventTypeDone = "done"

	// EventTypeError is sent when an error occurs.
	EventTypeError = "error"
)

// RunChannel is the client-id prefix for subscribers of one run. The hub
// broadcasts to the pattern "run:<id>:*"; each subscriber registers with a
// unique suffix under this prefix.
func RunChannel(runID string) string {
	return "run:" + runID + ":"
}
