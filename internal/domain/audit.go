package domain

import "time"

// AuditLog represents an audit log entry for tracking important actions
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	UserID    int64                  `db:"user_id" json:"user_id"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryBalance    = "balance"
	AuditCategorySettlement = "settlement"
	AuditCategoryTransfer   = "transfer"
	AuditCategoryWithdrawal = "withdrawal"
	AuditCategoryReferral   = "referral"
	AuditCategoryAdmin      = "admin"
)

// Audit actions
const (
	AuditActionBalanceCredit = "balance_credit"
	AuditActionBalanceDebit  = "balance_debit"

	AuditActionSettle            = "settle"
	AuditActionTransactionStatus = "transaction_status"
	AuditActionTransfer          = "transfer"
	AuditActionTransferStatus    = "transfer_status"

	AuditActionWithdrawRequest = "withdraw_request"
	AuditActionWithdrawApprove = "withdraw_approve"
	AuditActionWithdrawReject  = "withdraw_reject"
	AuditActionWithdrawCancel  = "withdraw_cancel"

	AuditActionReferralRegister = "referral_register"

	AuditActionRatesUpdate = "rates_update"
)
