package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus represents withdrawal processing status
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCancelled WithdrawalStatus = "cancelled"
)

// Terminal statuses have no outgoing transitions.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalRejected || s == WithdrawalCancelled
}

func (s WithdrawalStatus) CanTransition(next WithdrawalStatus) bool {
	return s == WithdrawalPending && next.Terminal()
}

type BankDetails struct {
	BankName      string `json:"bank_name,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Branch        string `json:"branch,omitempty"`
	PixKey        string `json:"pix_key,omitempty"`
}

// WithdrawalRequest is a merchant payout. Amount is held on the ledger while pending.
type WithdrawalRequest struct {
	ID            int64            `db:"id" json:"id"`
	Reference     string           `db:"reference" json:"reference"`
	UserID        int64            `db:"user_id" json:"user_id"`
	MerchantID    int64            `db:"merchant_id" json:"merchant_id"`
	Amount        decimal.Decimal  `db:"amount" json:"amount"`
	FeeAmount     decimal.Decimal  `db:"fee_amount" json:"fee_amount"`
	NetAmount     decimal.Decimal  `db:"net_amount" json:"net_amount"`
	FeePercentage decimal.Decimal  `db:"fee_percentage" json:"fee_percentage"`
	Status        WithdrawalStatus `db:"status" json:"status"`
	Bank          BankDetails      `db:"bank_details" json:"bank_details"`
	AdminNotes    string           `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	ProcessedAt   *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
	ProcessedBy   *int64           `db:"processed_by" json:"processed_by,omitempty"`
}
