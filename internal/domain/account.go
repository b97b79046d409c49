package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerAccount is a user's cashback balance.
//
// Held is the sum of pending withdrawals. TotalSpent only counts finalized
// outflows, so Balance + Held == TotalEarned - TotalSpent after every commit.
type LedgerAccount struct {
	UserID      int64           `db:"user_id" json:"user_id"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	Held        decimal.Decimal `db:"held" json:"held"`
	TotalEarned decimal.Decimal `db:"total_earned" json:"total_earned"`
	TotalSpent  decimal.Decimal `db:"total_spent" json:"total_spent"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Consistent reports whether the bookkeeping identity holds.
func (a LedgerAccount) Consistent() bool {
	return a.Balance.Add(a.Held).Equal(a.TotalEarned.Sub(a.TotalSpent)) && !a.Balance.IsNegative()
}

// EntryOp names a ledger mutation.
type EntryOp string

const (
	OpCredit        EntryOp = "credit"         // balance+, earned+
	OpDebit         EntryOp = "debit"          // balance-, spent+
	OpReverseCredit EntryOp = "reverse_credit" // balance-, earned-
	OpReverseDebit  EntryOp = "reverse_debit"  // balance+, spent-
	OpHold          EntryOp = "hold"           // balance-, held+
	OpRelease       EntryOp = "release"        // balance+, held-
	OpSettleHold    EntryOp = "settle_hold"    // held-, spent+
)

// Entry reasons
const (
	ReasonCashback         = "cashback"
	ReasonReferral         = "referral"
	ReasonPurchase         = "purchase"
	ReasonSale             = "sale"
	ReasonTransferOut      = "transfer_out"
	ReasonTransferIn       = "transfer_in"
	ReasonWithdrawal       = "withdrawal"
	ReasonWithdrawalCancel = "withdrawal_cancelled"
	ReasonWithdrawalReject = "withdrawal_rejected"
	ReasonReversal         = "reversal"
	ReasonAdjustment       = "adjustment"
)

// LedgerEntry is one journal row written with every balance change.
type LedgerEntry struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"user_id"`
	Op             EntryOp         `db:"op" json:"op"`
	Reason         string          `db:"reason" json:"reason"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter   decimal.Decimal `db:"balance_after" json:"balance_after"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	RefType        string          `db:"ref_type" json:"ref_type,omitempty"`
	Reference      string          `db:"reference" json:"reference,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
