// Package pubsub defines the topic transport the change notifier publishes
// to and subscription channels consume from.
package pubsub

import "context"

// Message is one topic-scoped payload. Delivery is at-least-once; within a
// topic, messages preserve publish order.
type Message struct {
	Topic   string
	Payload []byte
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscription is one live topic subscription. Implementations must close
// the Messages channel after a transport error or after Close, so consumers
// ranging over it always unblock; Err reports the cause after Messages is
// closed. Close is safe to call more than once.
type Subscription interface {
	Messages() <-chan Message
	Err() error
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

type Transport interface {
	Publisher
	Subscriber
}
