package service

import (
	"context"
	"log/slog"

	"cashback_platform/internal/logger"
)

// Notification kinds
const (
	NotifyCashbackEarned     = "cashback.earned"
	NotifyTransferSent       = "transfer.sent"
	NotifyTransferReceived   = "transfer.received"
	NotifyTransferRequested  = "transfer.requested"
	NotifyWithdrawalCreated  = "withdrawal.requested"
	NotifyWithdrawalCanceled = "withdrawal.cancelled"
	NotifyWithdrawalDone     = "withdrawal.completed"
	NotifyWithdrawalRejected = "withdrawal.rejected"
)

// Notifier delivers user and admin notifications. Callers run it after commit
// and ignore its errors.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind string, payload any) error
	NotifyAdmins(ctx context.Context, kind string, payload any) error
}

// MultiNotifier fans out to every sink and logs the failures.
type MultiNotifier struct {
	sinks []Notifier
	log   *slog.Logger
}

func NewMultiNotifier(sinks ...Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks, log: logger.With("component", "notifier")}
}

func (m *MultiNotifier) Add(n Notifier) {
	m.sinks = append(m.sinks, n)
}

func (m *MultiNotifier) Notify(ctx context.Context, userID int64, kind string, payload any) error {
	for _, s := range m.sinks {
		if err := s.Notify(ctx, userID, kind, payload); err != nil {
			m.log.Error("notify failed", "error", err, "user_id", userID, "kind", kind)
		}
	}
	return nil
}

func (m *MultiNotifier) NotifyAdmins(ctx context.Context, kind string, payload any) error {
	for _, s := range m.sinks {
		if err := s.NotifyAdmins(ctx, kind, payload); err != nil {
			m.log.Error("admin notify failed", "error", err, "kind", kind)
		}
	}
	return nil
}

// LogNotifier writes notifications to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, userID int64, kind string, payload any) error {
	logger.Debug("notification", "user_id", userID, "kind", kind)
	return nil
}

func (LogNotifier) NotifyAdmins(ctx context.Context, kind string, payload any) error {
	logger.Debug("admin notification", "kind", kind)
	return nil
}

func notify(ctx context.Context, n Notifier, userID int64, kind string, payload any) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, kind, payload); err != nil {
		logger.Error("notify failed", "error", err, "user_id", userID, "kind", kind)
	}
}

func notifyAdmins(ctx context.Context, n Notifier, kind string, payload any) {
	if n == nil {
		return
	}
	if err := n.NotifyAdmins(ctx, kind, payload); err != nil {
		logger.Error("admin notify failed", "error", err, "kind", kind)
	}
}
