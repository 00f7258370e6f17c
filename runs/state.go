package runs

import (
	"sync"
	"time"
)

// Kind distinguishes what is being executed.
type Kind string

const (
	KindExpert   Kind = "expert"
	KindWorkflow Kind = "workflow"
)

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event is one immutable entry in a run's log.
type Event struct {
	TS      time.Time      `json:"ts"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Info builds an info-level event stamped now.
func Info(message string, data map[string]any) Event {
	return Event{TS: time.Now().UTC(), Level: LevelInfo, Message: message, Data: data}
}

// Warn builds a warn-level event stamped now.
func Warn(message string, data map[string]any) Event {
	return Event{TS: time.Now().UTC(), Level: LevelWarn, Message: message, Data: data}
}

// Error builds an error-level event stamped now.
func Error(message string, data map[string]any) Event {
	return Event{TS: time.Now().UTC(), Level: LevelError, Message: message, Data: data}
}

// State is the in-memory record of one run. The executor is the only
// producer; at most one consumer drains events. The log is the single
// source of truth for delivery, so a consumer that attaches late still
// sees the backlog and no event is ever served twice.
type State struct {
	RunID      string     `json:"run_id"`
	Kind       Kind       `json:"kind"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	mu        sync.Mutex
	log       []Event
	delivered int
	wake      chan struct{}
	cancelled bool
}

func newState(runID string, kind Kind) *State {
	return &State{
		RunID:     runID,
		Kind:      kind,
		StartedAt: time.Now().UTC(),
		wake:      make(chan struct{}, 1),
	}
}

// append records an event in the log and nudges a blocked consumer. The
// wake channel carries no data, so a missed or stale nudge is harmless:
// popNext always re-reads the log.
func (s *State) append(ev Event) {
	s.mu.Lock()
	s.log = append(s.log, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// finish stamps FinishedAt once. Further finishes are no-ops.
func (s *State) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FinishedAt == nil {
		now := time.Now().UTC()
		s.FinishedAt = &now
	}
}

// Finished reports whether the run has completed.
func (s *State) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinishedAt != nil
}

// FinishedTime returns the completion timestamp, or nil while running.
func (s *State) FinishedTime() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinishedAt
}

// Cancelled reports whether a stop was requested. The executor checks this
// between nodes.
func (s *State) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *State) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Events returns a copy of the full log.
func (s *State) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.log...)
}

// popNext returns the next unread event, blocking up to timeout. The false
// return means no event arrived in time; a streaming consumer uses that gap
// to send a heartbeat.
func (s *State) popNext(timeout time.Duration) (Event, bool) {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		if s.delivered < len(s.log) {
			ev := s.log[s.delivered]
			s.delivered++
			s.mu.Unlock()
			return ev, true
		}
		s.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Event{}, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
			return Event{}, false
		}
	}
}
