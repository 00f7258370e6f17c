package runs

import (
	"testing"
	"time"
)

func TestCreateAndGet(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	state := r.Create(KindWorkflow)
	if state.RunID == "" {
		t.Fatal("run id is empty")
	}
	if got := r.Get(state.RunID); got != state {
		t.Error("Get returned a different state")
	}
	if r.Get("no-such-run") != nil {
		t.Error("unknown run should be nil")
	}
}

func TestEventsAreDeliveredInOrder(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	state := r.Create(KindWorkflow)
	r.Append(state.RunID, Info("first", nil))
	r.Append(state.RunID, Info("second", nil))
	r.Append(state.RunID, Warn("third", nil))

	for _, want := range []string{"first", "second", "third"} {
		ev, ok := r.PopNext(state.RunID, time.Second)
		if !ok {
			t.Fatalf("no event, wanted %q", want)
		}
		if ev.Message != want {
			t.Errorf("message = %q, want %q", ev.Message, want)
		}
	}
}

func TestPopNextTimesOutForHeartbeat(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	state := r.Create(KindExpert)
	start := time.Now()
	_, ok := r.PopNext(state.RunID, 20*time.Millisecond)
	if ok {
		t.Fatal("expected a timeout with no events")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("PopNext returned before the timeout")
	}
}

func TestLateConsumerSeesBacklog(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	state := r.Create(KindWorkflow)
	const total = 500
	for i := 0; i < total; i++ {
		state.append(Info("event", map[string]any{"i": i}))
	}

	for i := 0; i < total; i++ {
		ev, ok := r.PopNext(state.RunID, time.Second)
		if !ok {
			t.Fatalf("missing event %d", i)
		}
		if ev.Data["i"] != i {
			t.Fatalf("event %d out of order: %v", i, ev.Data)
		}
	}
}

func TestPopNextWakesOnLiveAppend(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	state := r.Create(KindWorkflow)
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Append(state.RunID, Info("live", nil))
	}()

	ev, ok := r.PopNext(state.RunID, time.Second)
	if !ok || ev.Message != "live" {
		t.Fatalf("got (%v, %v), want the live event", ev, ok)
	}
}

func TestFinishAndCancel(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	state := r.Create(KindWorkflow)
	if state.Finished() {
		t.Fatal("fresh run is finished")
	}
	if !r.Cancel(state.RunID) {
		t.Error("cancel on a live run should succeed")
	}
	if !state.Cancelled() {
		t.Error("cancel flag not set")
	}

	r.Finish(state.RunID)
	if !state.Finished() {
		t.Error("run not finished")
	}
	if r.Cancel(state.RunID) {
		t.Error("cancel after finish should report false")
	}
}

func TestEvictionRules(t *testing.T) {
	r := NewRegistry(WithTTL(time.Minute))
	defer r.Close()

	finished := r.Create(KindWorkflow)
	r.Finish(finished.RunID)

	running := r.Create(KindWorkflow)

	// Nothing is old enough yet.
	if n := r.evict(time.Now().UTC()); n != 0 {
		t.Fatalf("evicted %d runs early", n)
	}

	// Past the TTL the finished run goes; the unfinished one survives until
	// twice the TTL.
	future := time.Now().UTC().Add(90 * time.Second)
	if n := r.evict(future); n != 1 {
		t.Fatalf("evicted %d runs, want 1", n)
	}
	if r.Get(finished.RunID) != nil {
		t.Error("finished run should be evicted")
	}
	if r.Get(running.RunID) == nil {
		t.Error("running run evicted too soon")
	}

	abandoned := time.Now().UTC().Add(3 * time.Minute)
	if n := r.evict(abandoned); n != 1 {
		t.Fatalf("evicted %d runs, want the abandoned one", n)
	}
}

func TestRunsDoNotInterfere(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	a := r.Create(KindWorkflow)
	b := r.Create(KindWorkflow)
	r.Append(a.RunID, Info("for a", nil))
	r.Append(b.RunID, Info("for b", nil))

	ev, ok := r.PopNext(b.RunID, time.Second)
	if !ok || ev.Message != "for b" {
		t.Errorf("run b saw %v", ev)
	}
	ev, ok = r.PopNext(a.RunID, time.Second)
	if !ok || ev.Message != "for a" {
		t.Errorf("run a saw %v", ev)
	}
}

func TestEventsDeliveredExactlyOnce(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	state := r.Create(KindWorkflow)
	const total = 200
	go func() {
		for i := 0; i < total; i++ {
			r.Append(state.RunID, Info("event", map[string]any{"i": i}))
		}
	}()

	// The consumer races the producer, so each pop may come from the
	// backlog or from a live wake-up. Either way every event must arrive
	// exactly once, in append order.
	for i := 0; i < total; i++ {
		ev, ok := r.PopNext(state.RunID, time.Second)
		if !ok {
			t.Fatalf("missing event %d", i)
		}
		if ev.Data["i"] != i {
			t.Fatalf("event %d delivered out of sequence: %v", i, ev.Data)
		}
	}
	if _, ok := r.PopNext(state.RunID, 20*time.Millisecond); ok {
		t.Fatal("event delivered twice")
	}
}
