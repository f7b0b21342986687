package port

import (
	"context"

	"bazaar.com/internal/domain/entity"
)

// EventPublisher delivers committed notifications to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event entity.Event) error
}
