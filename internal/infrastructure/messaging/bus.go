package messaging

import (
	"context"
	"strings"
	"sync"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/infrastructure/logger"
)

const subscriberBuffer = 128

// TopicFor returns the bus topic an event of the given type is published on.
func TopicFor(eventType entity.EventType) string {
	return "ledger." + strings.ToLower(string(eventType))
}

// AllTopics lists every topic the ledger publishes on.
func AllTopics() []string {
	return []string{
		TopicFor(entity.EventListed),
		TopicFor(entity.EventBought),
		TopicFor(entity.EventCancelled),
	}
}

// Bus is an in-process publish/subscribe event bus fed by the outbox relay.
// Slow subscribers lose events rather than block publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan entity.Event
	logger      logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string][]chan entity.Event),
		logger:      log.With("module", "messaging"),
	}
}

func (b *Bus) Publish(ctx context.Context, topic string, event entity.Event) error {
	b.mu.RLock()
	subs := append([]chan entity.Event(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			b.logger.LogWarning(ctx, "Dropping event for slow subscriber",
				"topic", topic,
				"event_id", event.ID,
				"sequence", event.Sequence)
		}
	}
	return nil
}

// Subscribe delivers events published on topic to handler until ctx is done.
// Handler errors are logged and do not stop delivery.
func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumer string,
	handler func(context.Context, entity.Event) error,
) {
	ch := make(chan entity.Event, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil {
					b.logger.LogError(ctx, "Event consumer failed", err,
						"topic", topic,
						"consumer", consumer,
						"event_id", event.ID)
				}
			}
		}
	}()
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

func (b *Bus) removeSubscriber(topic string, target chan entity.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	filtered := make([]chan entity.Event, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}
