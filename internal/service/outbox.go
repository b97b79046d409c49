package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/store"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// enqueue records an event in the same transaction as the change it describes.
func enqueue(ctx context.Context, tx store.Tx, eventType string, aggregateID int64, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	evt := &domain.OutboxEvent{
		ID:          uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     body,
	}
	if err := tx.Enqueue(ctx, evt); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

// newReference returns a sortable public reference such as "TX-01J9...".
func newReference(prefix string) string {
	return prefix + "-" + strings.ToUpper(ulid.Make().String())
}
