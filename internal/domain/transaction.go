package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionRefunded  TransactionStatus = "refunded"
)

// Payment methods. PaymentBalance pays the merchant out of the client's cashback balance.
const (
	PaymentCash    = "cash"
	PaymentCard    = "card"
	PaymentPix     = "pix"
	PaymentBalance = "balance"
)

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentPix, PaymentBalance:
		return true
	}
	return false
}

// CanTransition reports whether an admin may move a transaction from s to next.
// Only completed sales can be cancelled or refunded.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	switch s {
	case TransactionPending:
		return next == TransactionCompleted || next == TransactionCancelled
	case TransactionCompleted:
		return next == TransactionCancelled || next == TransactionRefunded
	}
	return false
}

// Transaction is a settled sale. Amount, fee split and cashback are fixed at creation.
type Transaction struct {
	ID               int64             `db:"id" json:"id"`
	Reference        string            `db:"reference" json:"reference"`
	UserID           int64             `db:"user_id" json:"user_id"`
	MerchantID       int64             `db:"merchant_id" json:"merchant_id"`
	Amount           decimal.Decimal   `db:"amount" json:"amount"`
	CashbackAmount   decimal.Decimal   `db:"cashback_amount" json:"cashback_amount"`
	PlatformFee      decimal.Decimal   `db:"platform_fee" json:"platform_fee"`
	MerchantReceives decimal.Decimal   `db:"merchant_receives" json:"merchant_receives"`
	ReferralBonus    decimal.Decimal   `db:"referral_bonus" json:"referral_bonus"`
	ReferrerID       *int64            `db:"referrer_id" json:"referrer_id,omitempty"`
	Status           TransactionStatus `db:"status" json:"status"`
	PaymentMethod    string            `db:"payment_method" json:"payment_method"`
	IdempotencyKey   string            `db:"idempotency_key" json:"-"`
	Notes            string            `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}
