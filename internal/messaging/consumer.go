package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Event outcomes reported to an EventObserver.
const (
	EventProcessed = "processed"
	EventDropped   = "dropped"
	EventFailed    = "failed"
)

// Handler processes a single event.
type Handler[T any] func(ctx context.Context, event *T) error

// EventObserver records how each consumed event ended.
type EventObserver interface {
	ObserveEvent(topic, outcome string)
}

type noopEventObserver struct{}

func (noopEventObserver) ObserveEvent(string, string) {}

type consumerSettings struct {
	attempts int
	backoff  time.Duration
	observer EventObserver
}

// ConsumerOption tunes a Consumer.
type ConsumerOption func(*consumerSettings)

// WithRetry runs a failing handler up to attempts times, doubling backoff between tries.
func WithRetry(attempts int, backoff time.Duration) ConsumerOption {
	return func(s *consumerSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}

		s.backoff = backoff
	}
}

// WithEventObserver reports every event outcome to o.
func WithEventObserver(o EventObserver) ConsumerOption {
	return func(s *consumerSettings) {
		if o != nil {
			s.observer = o
		}
	}
}

// Consumer subscribes to a topic and processes messages with a typed handler.
// Undecodable messages are acked and dropped. A handler that keeps failing after its
// retries is logged and acked; activity events are not worth blocking the stream for.
// Messages interrupted by shutdown are nacked so another consumer can take them.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	settings   consumerSettings
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewConsumer creates a new generic consumer for a specific event type.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
	opts ...ConsumerOption,
) *Consumer[T] {
	settings := consumerSettings{
		attempts: 3,
		backoff:  100 * time.Millisecond,
		observer: noopEventObserver{},
	}

	for _, opt := range opts {
		opt(&settings)
	}

	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		settings:   settings,
		logger:     logger.With(zap.String("topic", topic)),
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start begins consuming messages from the topic.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		c.cancel()
		close(c.done)

		return err
	}

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer[T]) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer[T]) handleMessage(ctx context.Context, msg *message.Message) {
	log := c.logger.With(zap.String("message_id", msg.UUID))

	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		log.Error("dropping undecodable event", zap.Error(err))
		msg.Ack()
		c.settings.observer.ObserveEvent(c.topic, EventDropped)

		return
	}

	backoff := c.settings.backoff

	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, &event)
		if err == nil {
			break
		}

		if attempt >= c.settings.attempts {
			log.Error("giving up on event", zap.Int("attempts", attempt), zap.Error(err))
			msg.Ack()
			c.settings.observer.ObserveEvent(c.topic, EventFailed)

			return
		}

		log.Warn("event handler failed, retrying", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			msg.Nack()

			return
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	msg.Ack()
	c.settings.observer.ObserveEvent(c.topic, EventProcessed)

	log.Debug("processed event", zap.String("published_at", msg.Metadata.Get(MetadataPublishedAt)))
}

// Shutdown stops the consumer and waits for in-flight messages to complete.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}

	return nil
}
