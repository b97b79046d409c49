package domain

import (
	"encoding/json"
	"time"
)

// Event types written to the outbox.
const (
	EventTransactionSettled = "transaction.settled"
	EventTransactionStatus  = "transaction.status_changed"
	EventTransferCompleted  = "transfer.completed"
	EventWithdrawalRequest  = "withdrawal.requested"
	EventWithdrawalCancel   = "withdrawal.cancelled"
	EventWithdrawalComplete = "withdrawal.completed"
	EventWithdrawalReject   = "withdrawal.rejected"
	EventRatesUpdated       = "rates.updated"
)

type OutboxEvent struct {
	ID          string          `db:"id" json:"id"`
	EventType   string          `db:"event_type" json:"event_type"`
	AggregateID int64           `db:"aggregate_id" json:"aggregate_id"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Attempts    int             `db:"attempts" json:"attempts"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	PublishedAt *time.Time      `db:"published_at" json:"published_at,omitempty"`
}
