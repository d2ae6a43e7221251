package realtime

import (
	"context"
	"strings"
	"sync"

	"github.com/openplay/roster-service/internal/models"
	"github.com/openplay/roster-service/internal/pubsub"
	"github.com/openplay/roster-service/pkg/logger"
)

// FetchFunc loads the authoritative roster view for a game.
type FetchFunc func(ctx context.Context, gameID string) (*models.RosterView, error)

// ViewCache is a server-adjacent observer: it holds the last known roster
// view per watched game and keeps it converging with engine state through a
// subscription channel and the debounce coordinator. A failed re-fetch
// leaves the cached view stale but never wrong.
type ViewCache struct {
	fetch FetchFunc
	sub   pubsub.Subscriber
	coord *Coordinator
	l     logger.Logger

	channelTemplate ChannelConfig

	// Subscriptions outlive any one request.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.RWMutex
	views    map[string]*models.RosterView
	channels map[string]*Channel
	closed   bool
}

type ViewCacheConfig struct {
	Coordinator CoordinatorConfig
	Channel     ChannelConfig // Topic/handlers are set per game; RetryDelay and Enabled apply to all
}

func NewViewCache(sub pubsub.Subscriber, fetch FetchFunc, cfg ViewCacheConfig, l logger.Logger) *ViewCache {
	c := &ViewCache{
		fetch:    fetch,
		sub:      sub,
		l:        l,
		views:    make(map[string]*models.RosterView),
		channels: make(map[string]*Channel),
	}
	c.coord = NewCoordinator(cfg.Coordinator, c.refetch, l)
	c.channelTemplate = cfg.Channel
	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())
	return c
}

func (c *ViewCache) refetch(ctx context.Context, topic string) error {
	gameID := strings.TrimPrefix(topic, "roster:")
	view, err := c.fetch(ctx, gameID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.views[gameID] = view
	c.mu.Unlock()

	c.l.Debugf(ctx, "Roster view refreshed - game_id: %s, occupancy: %d", gameID, view.Occupancy)
	return nil
}

// Get returns the cached view for a game, fetching and watching it on first
// use.
func (c *ViewCache) Get(ctx context.Context, gameID string) (*models.RosterView, error) {
	c.mu.RLock()
	view, ok := c.views[gameID]
	c.mu.RUnlock()
	if ok {
		return view, nil
	}

	view, err := c.fetch(ctx, gameID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return view, nil
	}
	c.views[gameID] = view
	_, watching := c.channels[gameID]
	if !watching {
		topic := models.RosterTopic(gameID)
		c.channels[gameID] = OpenChannel(c.baseCtx, c.sub, ChannelConfig{
			Topic:      topic,
			Enabled:    c.channelTemplate.Enabled,
			RetryDelay: c.channelTemplate.RetryDelay,
			OnMessage: func(pubsub.Message) {
				c.coord.Notify(topic)
			},
			OnSubscribed: func() {
				// The view was fetched before the subscription came
				// up; anything published in between reached no
				// subscriber. Schedule a catch-up re-fetch.
				c.coord.Notify(topic)
			},
			OnInvalidate: func(err error) {
				// Missed events are unrecoverable; schedule a full
				// re-fetch instead.
				c.coord.Notify(topic)
			},
		}, c.l)
	}
	c.mu.Unlock()

	return view, nil
}

// Refresh bypasses the debounce delay for an explicit user-triggered
// refresh of one game's view.
func (c *ViewCache) Refresh(gameID string) {
	c.coord.FlushNow(models.RosterTopic(gameID))
}

// Unwatch drops the subscription and cached view for a game.
func (c *ViewCache) Unwatch(gameID string) {
	c.mu.Lock()
	ch, ok := c.channels[gameID]
	delete(c.channels, gameID)
	delete(c.views, gameID)
	c.mu.Unlock()

	if ok {
		ch.Close()
	}
}

func (c *ViewCache) Close() {
	c.baseCancel()
	c.mu.Lock()
	c.closed = true
	channels := c.channels
	c.channels = make(map[string]*Channel)
	c.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
	c.coord.Close()
}
