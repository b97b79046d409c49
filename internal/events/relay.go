package events

import (
	"context"
	"log/slog"
	"time"

	"cashback_platform/internal/logger"
	"cashback_platform/internal/metrics"
	"cashback_platform/internal/store"
)

// Relay pulls unpublished outbox events and hands them to a Publisher.
type Relay struct {
	outbox      store.OutboxStore
	publisher   Publisher
	interval    time.Duration
	batchSize   int
	maxAttempts int
	log         *slog.Logger
}

func NewRelay(outbox store.OutboxStore, publisher Publisher, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{
		outbox:      outbox,
		publisher:   publisher,
		interval:    interval,
		batchSize:   100,
		maxAttempts: 10,
		log:         logger.With("component", "outbox_relay"),
	}
}

// Run publishes until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.ProcessOnce(ctx); err != nil {
			r.log.Error("outbox iteration failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce publishes one batch and returns how many events went out.
// Failed events stay pending with their attempt count bumped.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := r.outbox.PendingEvents(ctx, r.maxAttempts, r.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, evt := range batch {
		if err := r.publisher.Publish(ctx, evt); err != nil {
			metrics.OutboxPublished.WithLabelValues("failed").Inc()
			r.log.Warn("outbox publish failed", "id", evt.ID, "type", evt.EventType, "attempts", evt.Attempts+1, "error", err)
			if err := r.outbox.MarkEventFailed(ctx, evt.ID); err != nil {
				return published, err
			}
			if evt.Attempts+1 >= r.maxAttempts {
				r.log.Error("outbox event parked after max attempts", "id", evt.ID, "type", evt.EventType)
			}
			continue
		}
		if err := r.outbox.MarkEventPublished(ctx, evt.ID); err != nil {
			return published, err
		}
		metrics.OutboxPublished.WithLabelValues("published").Inc()
		published++
	}
	if len(batch) > 0 {
		r.log.Debug("outbox batch processed", "batch_size", len(batch), "published", published)
	}
	return published, nil
}
