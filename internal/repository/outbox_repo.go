package repository

import (
	"context"

	"cashback_platform/internal/domain"
)

type OutboxRepository struct {
	db querier
}

func NewOutboxRepository(db querier) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, evt *domain.OutboxEvent) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, evt.ID, evt.EventType, evt.AggregateID, []byte(evt.Payload)).Scan(&evt.CreatedAt)
}

func (r *OutboxRepository) PendingEvents(ctx context.Context, maxAttempts, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, event_type, aggregate_id, payload, attempts, created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, maxAttempts, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateID, &payload, &e.Attempts, &e.CreatedAt, &e.PublishedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *OutboxRepository) MarkEventPublished(ctx context.Context, id string) error {
	return r.mark(ctx, `UPDATE outbox_events SET published_at = NOW() WHERE id = $1`, id)
}

func (r *OutboxRepository) MarkEventFailed(ctx context.Context, id string) error {
	return r.mark(ctx, `UPDATE outbox_events SET attempts = attempts + 1 WHERE id = $1`, id)
}

func (r *OutboxRepository) mark(ctx context.Context, sql, id string) error {
	tag, err := r.db.Exec(ctx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
