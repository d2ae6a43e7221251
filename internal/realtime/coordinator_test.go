package realtime

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/openplay/roster-service/pkg/logger"
)

// manualClock hands out timers that only fire when the test says so.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
	resets  int
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) last(t *testing.T) *manualTimer {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		t.Fatal("no timer was armed")
	}
	return c.timers[len(c.timers)-1]
}

func (c *manualClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (t *manualTimer) Reset(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
	t.resets++
	return true
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	stopped := t.stopped
	t.stopped = true
	return !stopped
}

func (t *manualTimer) fire() {
	t.mu.Lock()
	fn := t.fn
	t.mu.Unlock()
	fn()
}

type refetchRecorder struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (r *refetchRecorder) refetch(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *refetchRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func TestNotifyBurstYieldsOneRefetch(t *testing.T) {
	clock := &manualClock{}
	rec := &refetchRecorder{}
	c := NewCoordinator(CoordinatorConfig{Clock: clock}, rec.refetch, logger.InitializeTestZapLogger())
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Notify("roster:g1")
	}

	if got := clock.count(); got != 1 {
		t.Fatalf("armed %d timers for one burst, want 1", got)
	}
	timer := clock.last(t)
	if timer.resets != 4 {
		t.Errorf("timer re-armed %d times, want 4", timer.resets)
	}
	if len(rec.calls()) != 0 {
		t.Fatal("re-fetch ran before the burst settled")
	}

	timer.fire()

	if got := rec.calls(); len(got) != 1 || got[0] != "roster:g1" {
		t.Errorf("re-fetch calls = %v, want exactly [roster:g1]", got)
	}
}

func TestNotifyAfterFireStartsNewCycle(t *testing.T) {
	clock := &manualClock{}
	rec := &refetchRecorder{}
	c := NewCoordinator(CoordinatorConfig{Clock: clock}, rec.refetch, logger.InitializeTestZapLogger())
	defer c.Close()

	c.Notify("roster:g1")
	clock.last(t).fire()
	c.Notify("roster:g1")
	clock.last(t).fire()

	if got := clock.count(); got != 2 {
		t.Errorf("armed %d timers across two cycles, want 2", got)
	}
	if got := len(rec.calls()); got != 2 {
		t.Errorf("re-fetches = %d, want 2", got)
	}
}

func TestTopicsDebounceIndependently(t *testing.T) {
	clock := &manualClock{}
	rec := &refetchRecorder{}
	c := NewCoordinator(CoordinatorConfig{Clock: clock}, rec.refetch, logger.InitializeTestZapLogger())
	defer c.Close()

	c.Notify("roster:g1")
	c.Notify("roster:g2")

	if got := clock.count(); got != 2 {
		t.Fatalf("armed %d timers for two topics, want 2", got)
	}
	clock.timers[0].fire()

	got := rec.calls()
	if len(got) != 1 || got[0] != "roster:g1" {
		t.Errorf("calls after first fire = %v, want [roster:g1]", got)
	}
}

func TestDelayClassSelection(t *testing.T) {
	clock := &manualClock{}
	rec := &refetchRecorder{}
	c := NewCoordinator(CoordinatorConfig{
		StandardDelay: 250 * time.Millisecond,
		LiveDelay:     50 * time.Millisecond,
		Classify:      ClassifyByPrefix("draft:"),
		Clock:         clock,
	}, rec.refetch, logger.InitializeTestZapLogger())
	defer c.Close()

	c.Notify("roster:g1")
	if d := clock.last(t).delay; d != 250*time.Millisecond {
		t.Errorf("standard topic delay = %v, want 250ms", d)
	}

	c.Notify("draft:g1")
	if d := clock.last(t).delay; d != 50*time.Millisecond {
		t.Errorf("live topic delay = %v, want 50ms", d)
	}
}

func TestFlushNowBypassesDelay(t *testing.T) {
	clock := &manualClock{}
	rec := &refetchRecorder{}
	c := NewCoordinator(CoordinatorConfig{Clock: clock}, rec.refetch, logger.InitializeTestZapLogger())
	defer c.Close()

	c.Notify("roster:g1")
	c.FlushNow("roster:g1")

	if got := rec.calls(); len(got) != 1 {
		t.Fatalf("re-fetches after FlushNow = %d, want 1", len(got))
	}
	timer := clock.last(t)
	if !timer.stopped {
		t.Error("pending timer not stopped by FlushNow")
	}

	// A late fire from the stopped timer must not double-fetch.
	timer.fire()
	if got := len(rec.calls()); got != 1 {
		t.Errorf("re-fetches after stale fire = %d, want still 1", got)
	}
}

func TestFlushNowWithoutPendingStillRefetches(t *testing.T) {
	rec := &refetchRecorder{}
	c := NewCoordinator(CoordinatorConfig{Clock: &manualClock{}}, rec.refetch, logger.InitializeTestZapLogger())
	defer c.Close()

	c.FlushNow("roster:g1")
	if got := len(rec.calls()); got != 1 {
		t.Errorf("re-fetches = %d, want 1", got)
	}
}

func TestFailedRefetchReportsStaleAndDoesNotRearm(t *testing.T) {
	clock := &manualClock{}
	rec := &refetchRecorder{err: stderrors.New("store down")}

	var staleMu sync.Mutex
	var stale []string
	c := NewCoordinator(CoordinatorConfig{
		Clock: clock,
		OnStale: func(topic string, err error) {
			staleMu.Lock()
			defer staleMu.Unlock()
			stale = append(stale, topic)
		},
	}, rec.refetch, logger.InitializeTestZapLogger())
	defer c.Close()

	c.Notify("roster:g1")
	clock.last(t).fire()

	staleMu.Lock()
	gotStale := append([]string(nil), stale...)
	staleMu.Unlock()
	if len(gotStale) != 1 || gotStale[0] != "roster:g1" {
		t.Errorf("stale callbacks = %v, want [roster:g1]", gotStale)
	}
	if got := clock.count(); got != 1 {
		t.Errorf("timer re-armed after failed re-fetch: %d timers, want 1", got)
	}

	// The next event starts a fresh cycle.
	c.Notify("roster:g1")
	if got := clock.count(); got != 2 {
		t.Errorf("new event did not arm a timer: %d timers, want 2", got)
	}
}

func TestCloseStopsPendingTimers(t *testing.T) {
	clock := &manualClock{}
	rec := &refetchRecorder{}
	c := NewCoordinator(CoordinatorConfig{Clock: clock}, rec.refetch, logger.InitializeTestZapLogger())

	c.Notify("roster:g1")
	timer := clock.last(t)
	c.Close()

	if !timer.stopped {
		t.Error("pending timer not stopped by Close")
	}
	timer.fire()
	if got := len(rec.calls()); got != 0 {
		t.Errorf("re-fetch ran after Close: %d calls", got)
	}

	c.Notify("roster:g1")
	if got := clock.count(); got != 1 {
		t.Errorf("Notify after Close armed a timer")
	}
}

func TestTopicStateEvictedWhenIdle(t *testing.T) {
	clock := &manualClock{}
	rec := &refetchRecorder{}
	c := NewCoordinator(CoordinatorConfig{Clock: clock}, rec.refetch, logger.InitializeTestZapLogger())
	defer c.Close()

	c.Notify("roster:g1")
	if got := len(c.topics); got != 1 {
		t.Fatalf("pending topics = %d, want 1", got)
	}
	clock.last(t).fire()
	if got := len(c.topics); got != 0 {
		t.Errorf("topics retained after fire = %d, want 0", got)
	}

	c.Notify("roster:g2")
	c.FlushNow("roster:g2")
	if got := len(c.topics); got != 0 {
		t.Errorf("topics retained after FlushNow = %d, want 0", got)
	}
}
