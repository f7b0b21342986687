package messaging

import (
	"context"
	"errors"
	"time"

	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/logger"
)

const (
	defaultBatchSize     = 100
	defaultRelayInterval = time.Second
)

// OutboxRelay publishes committed ledger events that have not been delivered yet.
type OutboxRelay struct {
	Outbox    port.EventLog
	Publisher port.EventPublisher
	BatchSize int
	Interval  time.Duration
	Logger    logger.Logger
}

// RunOnce publishes one batch in sequence order. Events published before a
// failure are marked so they are not delivered twice.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	limit := r.BatchSize
	if limit <= 0 {
		limit = defaultBatchSize
	}

	pending, err := r.Outbox.PendingEvents(ctx, limit)
	if err != nil {
		r.Logger.LogError(ctx, "Outbox list failed", err)
		return 0, err
	}

	published := make([]int64, 0, len(pending))
	var publishErr error
	for _, event := range pending {
		topic := TopicFor(event.Type)
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			r.Logger.LogError(ctx, "Outbox publish failed", err,
				"event_id", event.ID,
				"sequence", event.Sequence,
				"topic", topic)
			publishErr = err
			break
		}
		published = append(published, event.Sequence)
	}

	if err := r.Outbox.MarkPublished(ctx, published); err != nil {
		r.Logger.LogError(ctx, "Outbox mark published failed", err, "count", len(published))
		return 0, errors.Join(publishErr, err)
	}

	if len(published) > 0 {
		r.Logger.LogInfo(ctx, "Outbox relay cycle completed", "published_count", len(published))
	}
	return len(published), publishErr
}

// Run calls RunOnce on every tick until ctx is done. A full batch is followed
// immediately by another cycle.
func (r OutboxRelay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	limit := r.BatchSize
	if limit <= 0 {
		limit = defaultBatchSize
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := r.RunOnce(ctx)
		if err == nil && n == limit {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
