package pubsub

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/openplay/roster-service/pkg/logger"
)

// RedisTransport implements the topic transport on Redis Pub/Sub. Redis
// fan-out is fire-and-forget for disconnected subscribers, which is exactly
// the contract here: a subscriber that missed messages invalidates and
// re-fetches instead of replaying.
type RedisTransport struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisTransport(cli *redis.Client, l logger.Logger) *RedisTransport {
	return &RedisTransport{cli: cli, l: l}
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := t.cli.Publish(ctx, topic, payload).Err(); err != nil {
		t.l.Errorf(ctx, "pubsub.RedisTransport.Publish: %v", err)
		return err
	}
	return nil
}

func (t *RedisTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := t.cli.Subscribe(ctx, topic)
	// Force the SUBSCRIBE round-trip so transport failures surface here
	// instead of as a silent dead channel.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		t.l.Errorf(ctx, "pubsub.RedisTransport.Subscribe: %v", err)
		return nil, err
	}

	sub := &redisSubscription{
		ps:  ps,
		out: make(chan Message),
	}
	go sub.pump(ctx, topic)
	return sub, nil
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan Message

	mu  sync.Mutex
	err error
}

func (s *redisSubscription) pump(ctx context.Context, topic string) {
	defer close(s.out)

	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		case msg, ok := <-ch:
			if !ok {
				// go-redis closes the channel after it gives up
				// reconnecting; the subscriber treats this as a
				// transport error.
				s.setErr(redis.ErrClosed)
				return
			}
			select {
			case s.out <- Message{Topic: topic, Payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		}
	}
}

func (s *redisSubscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *redisSubscription) Messages() <-chan Message { return s.out }

func (s *redisSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *redisSubscription) Close() error { return s.ps.Close() }
