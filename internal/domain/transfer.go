package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferPending    TransferStatus = "pending"
	TransferApproved   TransferStatus = "approved"
	TransferRejected   TransferStatus = "rejected"
	TransferProcessing TransferStatus = "processing"
	TransferCompleted  TransferStatus = "completed"
)

func (s TransferStatus) Valid() bool {
	switch s {
	case TransferPending, TransferApproved, TransferRejected, TransferProcessing, TransferCompleted:
		return true
	}
	return false
}

const (
	TransferTypeP2P      = "p2p"
	TransferTypeMerchant = "merchant"
)

type Transfer struct {
	ID          int64           `db:"id" json:"id"`
	Reference   string          `db:"reference" json:"reference"`
	FromUserID  int64           `db:"from_user_id" json:"from_user_id"`
	ToUserID    int64           `db:"to_user_id" json:"to_user_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Status      TransferStatus  `db:"status" json:"status"`
	Type        string          `db:"type" json:"type"`
	Description string          `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
