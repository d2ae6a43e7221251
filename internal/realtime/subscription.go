package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/openplay/roster-service/internal/pubsub"
	"github.com/openplay/roster-service/pkg/logger"
)

// ChannelConfig describes one (observer, topic) subscription.
type ChannelConfig struct {
	Topic string

	// Enabled=false opens a channel that subscribes to nothing and never
	// invokes the handler. Used when the observer is not interested, e.g.
	// the app is backgrounded.
	Enabled bool

	// OnMessage is invoked for every delivered event, in delivery order.
	OnMessage func(msg pubsub.Message)

	// OnSubscribed is invoked each time the subscription is established,
	// including after a resubscribe. Events published before this moment
	// were never delivered, so observers use it to schedule a reconciling
	// re-fetch.
	OnSubscribed func()

	// OnInvalidate is invoked when the transport fails. Missed events are
	// not replayed; the error itself is the signal to re-fetch everything.
	OnInvalidate func(err error)

	// RetryDelay paces resubscription attempts after a transport error.
	// Zero means one second.
	RetryDelay time.Duration
}

// Channel maintains one live subscription against the transport, delivering
// events to its handler and invalidating on every transport error.
type Channel struct {
	cfg ChannelConfig
	sub pubsub.Subscriber
	l   logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// OpenChannel starts the subscription pump. The returned Channel is closed
// with Close, which acts as the unsubscribe handle.
func OpenChannel(ctx context.Context, sub pubsub.Subscriber, cfg ChannelConfig, l logger.Logger) *Channel {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	ch := &Channel{cfg: cfg, sub: sub, l: l}
	if !cfg.Enabled {
		ch.cancel = func() {}
		return ch
	}

	runCtx, cancel := context.WithCancel(ctx)
	ch.cancel = cancel
	ch.wg.Add(1)
	go ch.run(runCtx)
	return ch
}

func (c *Channel) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		sub, err := c.sub.Subscribe(ctx, c.cfg.Topic)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.l.Warnf(ctx, "Subscribe failed, invalidating - topic: %s, error: %v", c.cfg.Topic, err)
			c.invalidate(err)
			if !c.wait(ctx) {
				return
			}
			continue
		}

		if c.cfg.OnSubscribed != nil {
			c.cfg.OnSubscribed()
		}

		// Close the subscription when the channel shuts down so the
		// delivery loop unblocks even if the transport never errors.
		drained := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-drained:
			}
		}()

		for msg := range sub.Messages() {
			c.cfg.OnMessage(msg)
		}
		close(drained)
		subErr := sub.Err()
		_ = sub.Close()

		if ctx.Err() != nil {
			return
		}

		// The stream died mid-subscription. Whatever was missed stays
		// missed; invalidate so the observer re-fetches.
		c.l.Warnf(ctx, "Subscription lost, invalidating - topic: %s, error: %v", c.cfg.Topic, subErr)
		c.invalidate(subErr)
		if !c.wait(ctx) {
			return
		}
	}
}

func (c *Channel) invalidate(err error) {
	if c.cfg.OnInvalidate != nil {
		c.cfg.OnInvalidate(err)
	}
}

func (c *Channel) wait(ctx context.Context) bool {
	select {
	case <-time.After(c.cfg.RetryDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

// Close stops the pump and releases the subscription. It is safe on a
// disabled channel.
func (c *Channel) Close() {
	c.cancel()
	c.wg.Wait()
}
