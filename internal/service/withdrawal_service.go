package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/fees"
	"cashback_platform/internal/logger"
	"cashback_platform/internal/metrics"
	"cashback_platform/internal/store"

	"github.com/shopspring/decimal"
)

type WithdrawalInput struct {
	UserID     int64
	MerchantID int64
	Amount     decimal.Decimal
	Bank       domain.BankDetails
}

// WithdrawalService runs the payout workflow: pending requests hold the full
// amount on the ledger until they are completed, rejected or cancelled.
type WithdrawalService struct {
	tx        store.TxRunner
	reader    store.WithdrawalReader
	merchants store.MerchantDirectory
	rates     *RateService
	ledger    *LedgerService
	notifier  Notifier
	audit     *AuditService
	log       *slog.Logger
}

func NewWithdrawalService(
	tx store.TxRunner,
	reader store.WithdrawalReader,
	merchants store.MerchantDirectory,
	rates *RateService,
	ledger *LedgerService,
	notifier Notifier,
	audit *AuditService,
) *WithdrawalService {
	return &WithdrawalService{
		tx:        tx,
		reader:    reader,
		merchants: merchants,
		rates:     rates,
		ledger:    ledger,
		notifier:  notifier,
		audit:     audit,
		log:       logger.With("component", "withdrawal"),
	}
}

// Request validates the payout and provisions it: amount moves from balance to
// held in the same transaction that inserts the pending request.
func (s *WithdrawalService) Request(ctx context.Context, in WithdrawalInput) (*domain.WithdrawalRequest, error) {
	w, err := s.request(ctx, in)
	if err != nil {
		if kind := domain.KindOf(err); kind != "" {
			metrics.Rejections.WithLabelValues("withdrawal_request", kind).Inc()
		}
		return nil, err
	}
	return w, nil
}

func (s *WithdrawalService) request(ctx context.Context, in WithdrawalInput) (*domain.WithdrawalRequest, error) {
	if _, err := domain.NormalizeAmount(in.Amount); err != nil {
		return nil, err
	}
	merchant, err := s.merchants.GetMerchant(ctx, in.MerchantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	if merchant.OwnerUserID != in.UserID {
		return nil, domain.ErrMerchantNotFound
	}

	rates, err := s.rates.Current(ctx)
	if err != nil {
		return nil, err
	}
	split, err := fees.WithdrawalFee(in.Amount, rates)
	if err != nil {
		return nil, err
	}
	if split.Amount.LessThan(rates.MinWithdrawal) {
		return nil, domain.ErrBelowMinimum
	}

	w := &domain.WithdrawalRequest{
		Reference:     newReference("WD"),
		UserID:        in.UserID,
		MerchantID:    merchant.ID,
		Amount:        split.Amount,
		FeeAmount:     split.FeeAmount,
		NetAmount:     split.NetAmount,
		FeePercentage: split.FeePercentage,
		Status:        domain.WithdrawalPending,
		Bank:          in.Bank,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, _, err := s.ledger.post(ctx, tx, Posting{
			UserID: in.UserID, Op: domain.OpHold, Reason: domain.ReasonWithdrawal,
			Amount: w.Amount, RefType: "withdrawal", Reference: w.Reference,
		}); err != nil {
			return err
		}
		if err := tx.InsertWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		return enqueue(ctx, tx, domain.EventWithdrawalRequest, w.ID, w)
	})
	if err != nil {
		return nil, err
	}

	metrics.WithdrawalTransitions.WithLabelValues(string(domain.WithdrawalPending)).Inc()
	metrics.LedgerPostings.WithLabelValues(string(domain.OpHold)).Inc()
	s.audit.LogWithdrawal(ctx, in.UserID, domain.AuditActionWithdrawRequest, w)
	s.log.Info("withdrawal requested", "withdrawal_id", w.ID, "user_id", w.UserID, "amount", w.Amount.StringFixed(2))
	notify(ctx, s.notifier, w.UserID, NotifyWithdrawalCreated, w)
	notifyAdmins(ctx, s.notifier, NotifyWithdrawalCreated, w)
	return w, nil
}

// Cancel is the owner's action on a pending request; the held amount returns
// to the balance.
func (s *WithdrawalService) Cancel(ctx context.Context, userID, id int64) (*domain.WithdrawalRequest, error) {
	w, err := s.finish(ctx, id, domain.WithdrawalCancelled, userID, nil, "")
	if err != nil {
		return nil, err
	}
	s.audit.LogWithdrawal(ctx, userID, domain.AuditActionWithdrawCancel, w)
	notify(ctx, s.notifier, w.UserID, NotifyWithdrawalCanceled, w)
	return w, nil
}

// Decide completes (approve) or rejects a pending request on behalf of adminID.
func (s *WithdrawalService) Decide(ctx context.Context, adminID, id int64, approve bool, notes string) (*domain.WithdrawalRequest, error) {
	status := domain.WithdrawalRejected
	action := domain.AuditActionWithdrawReject
	kind := NotifyWithdrawalRejected
	if approve {
		status = domain.WithdrawalCompleted
		action = domain.AuditActionWithdrawApprove
		kind = NotifyWithdrawalDone
	}

	w, err := s.finish(ctx, id, status, 0, &adminID, notes)
	if err != nil {
		return nil, err
	}
	s.audit.LogWithdrawal(ctx, adminID, action, w)
	notify(ctx, s.notifier, w.UserID, kind, w)
	return w, nil
}

// finish moves a pending request to a terminal status. ownerID > 0 restricts
// the action to the request owner.
func (s *WithdrawalService) finish(ctx context.Context, id int64, status domain.WithdrawalStatus, ownerID int64, adminID *int64, notes string) (*domain.WithdrawalRequest, error) {
	var w *domain.WithdrawalRequest
	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		w, err = tx.LockWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if ownerID > 0 && w.UserID != ownerID {
			return domain.ErrNotFound
		}
		if !w.Status.CanTransition(status) {
			return domain.ErrAlreadyProcessed
		}

		p := Posting{
			UserID:         w.UserID,
			Amount:         w.Amount,
			IdempotencyKey: "withdrawal-" + string(status) + ":" + strconv.FormatInt(w.ID, 10),
			RefType:        "withdrawal",
			Reference:      w.Reference,
		}
		var event string
		switch status {
		case domain.WithdrawalCompleted:
			p.Op, p.Reason = domain.OpSettleHold, domain.ReasonWithdrawal
			event = domain.EventWithdrawalComplete
		case domain.WithdrawalRejected:
			p.Op, p.Reason = domain.OpRelease, domain.ReasonWithdrawalReject
			event = domain.EventWithdrawalReject
		case domain.WithdrawalCancelled:
			p.Op, p.Reason = domain.OpRelease, domain.ReasonWithdrawalCancel
			event = domain.EventWithdrawalCancel
		}
		if _, _, err := s.ledger.post(ctx, tx, p); err != nil {
			return err
		}

		now := time.Now().UTC()
		w.Status = status
		w.ProcessedAt = &now
		w.ProcessedBy = adminID
		if notes != "" {
			w.AdminNotes = notes
		}
		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		return enqueue(ctx, tx, event, w.ID, w)
	})
	if err != nil {
		if kind := domain.KindOf(err); kind != "" {
			metrics.Rejections.WithLabelValues("withdrawal_"+string(status), kind).Inc()
		}
		return nil, err
	}
	metrics.WithdrawalTransitions.WithLabelValues(string(status)).Inc()
	s.log.Info("withdrawal finished", "withdrawal_id", w.ID, "status", status)
	return w, nil
}

// Get returns a request visible to userID; other users' requests look missing.
func (s *WithdrawalService) Get(ctx context.Context, userID, id int64) (*domain.WithdrawalRequest, error) {
	w, err := s.reader.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return w, nil
}

func (s *WithdrawalService) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.WithdrawalRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.reader.ListWithdrawalsByUser(ctx, userID, limit)
}

// ListPending returns the oldest pending requests first.
func (s *WithdrawalService) ListPending(ctx context.Context, limit int) ([]domain.WithdrawalRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.reader.ListWithdrawalsByStatus(ctx, domain.WithdrawalPending, limit)
}
