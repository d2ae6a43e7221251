package realtime

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/openplay/roster-service/internal/pubsub"
	"github.com/openplay/roster-service/pkg/logger"
)

// scriptedSubscriber hands out one scripted subscription per Subscribe call.
type scriptedSubscriber struct {
	mu    sync.Mutex
	subs  []*scriptedSubscription
	errs  []error // subscribe errors consumed before subs
	calls int
}

type scriptedSubscription struct {
	msgs chan pubsub.Message
	err  error
	once sync.Once
}

func (s *scriptedSubscriber) Subscribe(ctx context.Context, topic string) (pubsub.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	if len(s.subs) == 0 {
		// Keep the pump parked on an open stream.
		sub := &scriptedSubscription{msgs: make(chan pubsub.Message)}
		return sub, nil
	}
	sub := s.subs[0]
	s.subs = s.subs[1:]
	return sub, nil
}

func (s *scriptedSubscription) Messages() <-chan pubsub.Message { return s.msgs }
func (s *scriptedSubscription) Err() error                      { return s.err }

// Close closes the message stream, per the Subscription contract.
func (s *scriptedSubscription) Close() error {
	s.once.Do(func() { close(s.msgs) })
	return nil
}

func TestChannelDeliversMessagesInOrder(t *testing.T) {
	stream := &scriptedSubscription{msgs: make(chan pubsub.Message, 3)}
	sub := &scriptedSubscriber{subs: []*scriptedSubscription{stream}}

	received := make(chan pubsub.Message, 3)
	ch := OpenChannel(context.Background(), sub, ChannelConfig{
		Topic:     "roster:g1",
		Enabled:   true,
		OnMessage: func(msg pubsub.Message) { received <- msg },
	}, logger.InitializeTestZapLogger())
	defer ch.Close()

	for _, p := range []string{"a", "b", "c"} {
		stream.msgs <- pubsub.Message{Topic: "roster:g1", Payload: []byte(p)}
	}

	for _, want := range []string{"a", "b", "c"} {
		select {
		case msg := <-received:
			if string(msg.Payload) != want {
				t.Errorf("got payload %q, want %q", msg.Payload, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %q", want)
		}
	}
}

func TestChannelInvalidatesOnStreamLoss(t *testing.T) {
	streamErr := stderrors.New("connection reset")
	dead := &scriptedSubscription{msgs: make(chan pubsub.Message), err: streamErr}
	_ = dead.Close()
	sub := &scriptedSubscriber{subs: []*scriptedSubscription{dead}}

	invalidated := make(chan error, 1)
	ch := OpenChannel(context.Background(), sub, ChannelConfig{
		Topic:        "roster:g1",
		Enabled:      true,
		OnMessage:    func(pubsub.Message) {},
		OnInvalidate: func(err error) { invalidated <- err },
		RetryDelay:   10 * time.Millisecond,
	}, logger.InitializeTestZapLogger())
	defer ch.Close()

	select {
	case err := <-invalidated:
		if !stderrors.Is(err, streamErr) {
			t.Errorf("invalidated with %v, want %v", err, streamErr)
		}
	case <-time.After(time.Second):
		t.Fatal("stream loss did not invalidate")
	}
}

func TestChannelInvalidatesOnSubscribeFailure(t *testing.T) {
	subErr := stderrors.New("transport down")
	sub := &scriptedSubscriber{errs: []error{subErr}}

	invalidated := make(chan error, 1)
	ch := OpenChannel(context.Background(), sub, ChannelConfig{
		Topic:        "roster:g1",
		Enabled:      true,
		OnMessage:    func(pubsub.Message) {},
		OnInvalidate: func(err error) { invalidated <- err },
		RetryDelay:   10 * time.Millisecond,
	}, logger.InitializeTestZapLogger())
	defer ch.Close()

	select {
	case err := <-invalidated:
		if !stderrors.Is(err, subErr) {
			t.Errorf("invalidated with %v, want %v", err, subErr)
		}
	case <-time.After(time.Second):
		t.Fatal("subscribe failure did not invalidate")
	}
}

func TestChannelResubscribesAfterLoss(t *testing.T) {
	dead := &scriptedSubscription{msgs: make(chan pubsub.Message), err: stderrors.New("lost")}
	_ = dead.Close()
	live := &scriptedSubscription{msgs: make(chan pubsub.Message, 1)}
	sub := &scriptedSubscriber{subs: []*scriptedSubscription{dead, live}}

	received := make(chan pubsub.Message, 1)
	ch := OpenChannel(context.Background(), sub, ChannelConfig{
		Topic:        "roster:g1",
		Enabled:      true,
		OnMessage:    func(msg pubsub.Message) { received <- msg },
		OnInvalidate: func(error) {},
		RetryDelay:   10 * time.Millisecond,
	}, logger.InitializeTestZapLogger())
	defer ch.Close()

	live.msgs <- pubsub.Message{Topic: "roster:g1", Payload: []byte("after-retry")}

	select {
	case msg := <-received:
		if string(msg.Payload) != "after-retry" {
			t.Errorf("got payload %q, want after-retry", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not resubscribe after stream loss")
	}
}

func TestDisabledChannelNeverSubscribes(t *testing.T) {
	sub := &scriptedSubscriber{}
	ch := OpenChannel(context.Background(), sub, ChannelConfig{
		Topic:     "roster:g1",
		Enabled:   false,
		OnMessage: func(pubsub.Message) { t.Error("handler invoked on disabled channel") },
	}, logger.InitializeTestZapLogger())

	time.Sleep(20 * time.Millisecond)
	sub.mu.Lock()
	calls := sub.calls
	sub.mu.Unlock()
	if calls != 0 {
		t.Errorf("disabled channel subscribed %d times, want 0", calls)
	}
	ch.Close()
}

func TestChannelSignalsEachSubscribe(t *testing.T) {
	dead := &scriptedSubscription{msgs: make(chan pubsub.Message), err: stderrors.New("lost")}
	_ = dead.Close()
	live := &scriptedSubscription{msgs: make(chan pubsub.Message, 1)}
	sub := &scriptedSubscriber{subs: []*scriptedSubscription{dead, live}}

	subscribed := make(chan struct{}, 4)
	ch := OpenChannel(context.Background(), sub, ChannelConfig{
		Topic:        "roster:g1",
		Enabled:      true,
		OnMessage:    func(pubsub.Message) {},
		OnInvalidate: func(error) {},
		OnSubscribed: func() { subscribed <- struct{}{} },
		RetryDelay:   10 * time.Millisecond,
	}, logger.InitializeTestZapLogger())
	defer ch.Close()

	// One signal for the first subscribe, another after the resubscribe.
	for i := 0; i < 2; i++ {
		select {
		case <-subscribed:
		case <-time.After(time.Second):
			t.Fatalf("missing subscribe signal %d", i+1)
		}
	}
}

// The delivery loop must unblock on Close even when the transport never
// errors on its own.
func TestCloseUnblocksIdleSubscription(t *testing.T) {
	ch := OpenChannel(context.Background(), &scriptedSubscriber{}, ChannelConfig{
		Topic:     "roster:g1",
		Enabled:   true,
		OnMessage: func(pubsub.Message) {},
	}, logger.InitializeTestZapLogger())

	done := make(chan struct{})
	go func() {
		ch.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on an idle subscription")
	}
}
