package runs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josephdodge8141/aspen-backend/logger"
)

const (
	// DefaultTTL is how long a finished run stays readable.
	DefaultTTL = 900 * time.Second
	// DefaultGCInterval is how often the eviction pass runs.
	DefaultGCInterval = 60 * time.Second
)

// Registry is the process-wide map of live runs. Safe for concurrent use
// across runs; within one run the executor is the only writer.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*State

	ttl        time.Duration
	gcInterval time.Duration
	log        *logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL overrides the eviction TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithGCInterval overrides how often eviction runs.
func WithGCInterval(interval time.Duration) Option {
	return func(r *Registry) {
		if interval > 0 {
			r.gcInterval = interval
		}
	}
}

// WithLogger attaches a logger for eviction reporting.
func WithLogger(log *logger.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry builds a registry and starts its background eviction task.
// Call Close to stop it.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		runs:       make(map[string]*State),
		ttl:        DefaultTTL,
		gcInterval: DefaultGCInterval,
		log:        logger.NewDefault("runs"),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.gcLoop()
	return r
}

// Create registers a new run and returns its state.
func (r *Registry) Create(kind Kind) *State {
	state := newState(uuid.NewString(), kind)
	r.mu.Lock()
	r.runs[state.RunID] = state
	r.mu.Unlock()
	return state
}

// Get returns the run, or nil when unknown or already evicted.
func (r *Registry) Get(runID string) *State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runs[runID]
}

// Append adds an event to a run's log. Appending to an unknown run is a
// no-op: the run may have been evicted under a slow producer.
func (r *Registry) Append(runID string, ev Event) {
	if state := r.Get(runID); state != nil {
		state.append(ev)
	}
}

// Finish marks the run completed; eviction becomes eligible TTL later.
func (r *Registry) Finish(runID string) {
	if state := r.Get(runID); state != nil {
		state.finish()
	}
}

// Cancel requests the run's executor to stop before its next node.
func (r *Registry) Cancel(runID string) bool {
	state := r.Get(runID)
	if state == nil || state.Finished() {
		return false
	}
	state.cancel()
	return true
}

// PopNext blocks up to timeout for the run's next unread event. The false
// return means either timeout (heartbeat opportunity) or unknown run.
func (r *Registry) PopNext(runID string, timeout time.Duration) (Event, bool) {
	state := r.Get(runID)
	if state == nil {
		return Event{}, false
	}
	return state.popNext(timeout)
}

// Close stops the eviction task. Run state stays readable until process
// exit.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) gcLoop() {
	ticker := time.NewTicker(r.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.evict(time.Now().UTC())
		case <-r.stop:
			return
		}
	}
}

// evict removes finished runs older than the TTL and unfinished runs stale
// beyond twice the TTL (abandoned). A running executor is never pulled out
// from under: unfinished runs get the doubled grace period.
func (r *Registry) evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, state := range r.runs {
		var stale bool
		if finished := state.FinishedTime(); finished != nil {
			stale = now.Sub(*finished) > r.ttl
		} else {
			stale = now.Sub(state.StartedAt) > 2*r.ttl
		}
		if stale {
			delete(r.runs, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.log.Debug("evicted stale runs", map[string]interface{}{"count": evicted})
	}
	return evicted
}
