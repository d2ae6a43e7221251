// Package realtime keeps observer read models converging with engine state:
// subscription channels deliver change events, and the coordinator turns
// event bursts into single debounced re-fetches of authoritative state.
package realtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/openplay/roster-service/pkg/logger"
)

type DelayClass int

const (
	// DelayClassStandard absorbs bursts on general roster and game-list
	// views.
	DelayClassStandard DelayClass = iota
	// DelayClassLive is the short delay for low-latency surfaces such as a
	// live draft room.
	DelayClassLive
)

// RefetchFunc re-fetches the authoritative state behind a topic. The
// coordinator guarantees exactly one call per settled burst.
type RefetchFunc func(ctx context.Context, topic string) error

type CoordinatorConfig struct {
	StandardDelay time.Duration
	LiveDelay     time.Duration

	// Classify picks the delay class for a topic. Nil means every topic
	// uses the standard delay.
	Classify func(topic string) DelayClass

	// OnStale is invoked when a re-fetch fails: the observer's view is
	// stale but not wrong. The timer is not re-armed; the next event (or
	// FlushNow) re-arms it.
	OnStale func(topic string, err error)

	// Clock is injectable for tests; nil means wall clock.
	Clock Clock
}

// ClassifyByPrefix returns a Classify func that assigns DelayClassLive to
// topics with any of the given prefixes.
func ClassifyByPrefix(livePrefixes ...string) func(topic string) DelayClass {
	return func(topic string) DelayClass {
		for _, p := range livePrefixes {
			if strings.HasPrefix(topic, p) {
				return DelayClassLive
			}
		}
		return DelayClassStandard
	}
}

// Coordinator debounces change events per topic: idle until an event
// arrives, then pending while a timer runs, re-armed by every further event,
// and exactly one re-fetch when the timer finally fires.
type Coordinator struct {
	cfg     CoordinatorConfig
	refetch RefetchFunc
	clock   Clock
	l       logger.Logger

	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

type topicState struct {
	pending bool
	timer   Timer
}

func NewCoordinator(cfg CoordinatorConfig, refetch RefetchFunc, l logger.Logger) *Coordinator {
	if cfg.StandardDelay <= 0 {
		cfg.StandardDelay = 250 * time.Millisecond
	}
	if cfg.LiveDelay <= 0 {
		cfg.LiveDelay = 50 * time.Millisecond
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Coordinator{
		cfg:     cfg,
		refetch: refetch,
		clock:   clock,
		l:       l,
		topics:  make(map[string]*topicState),
	}
}

// Notify records a change event for a topic. While the topic is pending the
// timer is re-armed (debounce, not throttle), so the re-fetch never runs
// before the burst settles and always runs once after it.
func (c *Coordinator) Notify(topic string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	delay := c.delayFor(topic)
	st, ok := c.topics[topic]
	if !ok {
		st = &topicState{}
		c.topics[topic] = st
	}
	if st.pending {
		st.timer.Reset(delay)
		c.mu.Unlock()
		return
	}
	st.pending = true
	st.timer = c.clock.AfterFunc(delay, func() { c.fire(topic) })
	c.mu.Unlock()
}

// FlushNow bypasses the debounce delay for an explicit user-triggered
// refresh.
func (c *Coordinator) FlushNow(topic string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if st, ok := c.topics[topic]; ok && st.pending {
		st.timer.Stop()
		st.pending = false
		delete(c.topics, topic)
	}
	c.mu.Unlock()

	c.doRefetch(topic)
}

func (c *Coordinator) fire(topic string) {
	c.mu.Lock()
	st, ok := c.topics[topic]
	if !ok || !st.pending || c.closed {
		// FlushNow or Close won the race; the re-fetch already happened
		// or is no longer wanted.
		c.mu.Unlock()
		return
	}
	st.pending = false
	// State exists only while a cycle is pending; evict so the map does
	// not grow with every topic ever seen.
	delete(c.topics, topic)
	c.mu.Unlock()

	c.doRefetch(topic)
}

func (c *Coordinator) doRefetch(topic string) {
	if err := c.refetch(context.Background(), topic); err != nil {
		c.l.Warnf(context.Background(), "Re-fetch failed, view is stale - topic: %s, error: %v", topic, err)
		if c.cfg.OnStale != nil {
			c.cfg.OnStale(topic, err)
		}
	}
}

func (c *Coordinator) delayFor(topic string) time.Duration {
	if c.cfg.Classify != nil && c.cfg.Classify(topic) == DelayClassLive {
		return c.cfg.LiveDelay
	}
	return c.cfg.StandardDelay
}

// Close stops all pending timers. Events after Close are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, st := range c.topics {
		if st.pending {
			st.timer.Stop()
			st.pending = false
		}
	}
}
