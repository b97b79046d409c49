package service

import (
	"context"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/logger"
	"cashback_platform/internal/store"

	"github.com/shopspring/decimal"
)

// AuditService handles audit logging. Writes are fire-and-forget: a failed
// insert is logged and never fails the caller.
type AuditService struct {
	repo store.AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(repo store.AuditStore) *AuditService {
	return &AuditService{repo: repo}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]interface{}) {
	if s == nil || s.repo == nil {
		return
	}
	log := &domain.AuditLog{
		UserID:   userID,
		Action:   action,
		Category: category,
		Details:  details,
	}

	if err := s.repo.CreateAuditLog(ctx, log); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogWithRequest creates an audit log with request info (IP, User-Agent)
func (s *AuditService) LogWithRequest(ctx context.Context, userID int64, action, category, ip, userAgent string, details map[string]interface{}) {
	if s == nil || s.repo == nil {
		return
	}
	log := &domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
	}

	if err := s.repo.CreateAuditLog(ctx, log); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogBalanceChange logs a direct credit or debit; change is negative for debits.
func (s *AuditService) LogBalanceChange(ctx context.Context, userID int64, change decimal.Decimal, reason string, details map[string]interface{}) {
	action := domain.AuditActionBalanceCredit
	if change.IsNegative() {
		action = domain.AuditActionBalanceDebit
	}

	if details == nil {
		details = make(map[string]interface{})
	}
	details["change"] = change.StringFixed(2)
	details["reason"] = reason

	s.Log(ctx, userID, action, domain.AuditCategoryBalance, details)
}

func (s *AuditService) LogSettlement(ctx context.Context, t *domain.Transaction) {
	s.Log(ctx, t.UserID, domain.AuditActionSettle, domain.AuditCategorySettlement, map[string]interface{}{
		"transaction_id": t.ID,
		"merchant_id":    t.MerchantID,
		"amount":         t.Amount.StringFixed(2),
		"cashback":       t.CashbackAmount.StringFixed(2),
		"payment_method": t.PaymentMethod,
	})
}

func (s *AuditService) LogTransfer(ctx context.Context, t *domain.Transfer) {
	s.Log(ctx, t.FromUserID, domain.AuditActionTransfer, domain.AuditCategoryTransfer, map[string]interface{}{
		"transfer_id": t.ID,
		"to_user_id":  t.ToUserID,
		"amount":      t.Amount.StringFixed(2),
	})
}

// LogWithdrawal logs a withdrawal state change made by actorID.
func (s *AuditService) LogWithdrawal(ctx context.Context, actorID int64, action string, w *domain.WithdrawalRequest) {
	s.Log(ctx, actorID, action, domain.AuditCategoryWithdrawal, map[string]interface{}{
		"withdrawal_id": w.ID,
		"owner_id":      w.UserID,
		"amount":        w.Amount.StringFixed(2),
		"status":        string(w.Status),
	})
}

// LogAdminAction logs an admin action
func (s *AuditService) LogAdminAction(ctx context.Context, adminID int64, action string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["admin_id"] = adminID

	s.Log(ctx, adminID, action, domain.AuditCategoryAdmin, details)
}

// GetLogsByCategory returns the newest logs first; an empty category means all.
func (s *AuditService) GetLogsByCategory(ctx context.Context, category string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, category, limit)
}
