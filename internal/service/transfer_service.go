package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/logger"
	"cashback_platform/internal/metrics"
	"cashback_platform/internal/store"

	"github.com/shopspring/decimal"
)

// Recipient identifies the receiving user either by id or by an email, phone
// or name search term.
type Recipient struct {
	UserID int64
	Term   string
}

type TransferInput struct {
	FromUserID  int64
	To          Recipient
	Amount      decimal.Decimal
	Description string
}

type TransferResult struct {
	Transfer    domain.Transfer      `json:"transfer"`
	FromAccount domain.LedgerAccount `json:"from_account"`
}

type TransferService struct {
	tx       store.TxRunner
	reader   store.TransferReader
	users    store.UserDirectory
	ledger   *LedgerService
	notifier Notifier
	audit    *AuditService
	log      *slog.Logger
}

func NewTransferService(tx store.TxRunner, reader store.TransferReader, users store.UserDirectory, ledger *LedgerService, notifier Notifier, audit *AuditService) *TransferService {
	return &TransferService{
		tx:       tx,
		reader:   reader,
		users:    users,
		ledger:   ledger,
		notifier: notifier,
		audit:    audit,
		log:      logger.With("component", "transfer"),
	}
}

// ResolveRecipient looks the recipient up by id or search term.
func (s *TransferService) ResolveRecipient(ctx context.Context, r Recipient) (*domain.User, error) {
	var (
		u   *domain.User
		err error
	)
	switch {
	case r.UserID > 0:
		u, err = s.users.GetUser(ctx, r.UserID)
	case r.Term != "":
		u, err = s.users.FindUserByTerm(ctx, r.Term)
	default:
		return nil, domain.ErrRecipientNotFound
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}
	return u, nil
}

// Transfer moves balance from the sender to the resolved recipient and records
// a completed p2p transfer.
func (s *TransferService) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	res, err := s.transfer(ctx, in)
	if err != nil {
		if kind := domain.KindOf(err); kind != "" {
			metrics.Rejections.WithLabelValues("transfer", kind).Inc()
		}
		return nil, err
	}
	return res, nil
}

func (s *TransferService) transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	amount, err := domain.NormalizeAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	recipient, err := s.ResolveRecipient(ctx, in.To)
	if err != nil {
		return nil, err
	}
	if recipient.ID == in.FromUserID {
		return nil, domain.ErrSelfTransfer
	}

	res := &TransferResult{}
	err = s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t := &domain.Transfer{
			Reference:   newReference("TR"),
			FromUserID:  in.FromUserID,
			ToUserID:    recipient.ID,
			Amount:      amount,
			Status:      domain.TransferCompleted,
			Type:        domain.TransferTypeP2P,
			Description: in.Description,
		}
		from, _, err := s.ledger.transferTx(ctx, tx, in.FromUserID, recipient.ID, amount, "transfer", t.Reference)
		if err != nil {
			return err
		}
		if err := tx.InsertTransfer(ctx, t); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		res.Transfer = *t
		res.FromAccount = from
		return enqueue(ctx, tx, domain.EventTransferCompleted, t.ID, t)
	})
	if err != nil {
		return nil, err
	}

	t := &res.Transfer
	metrics.Transfers.Inc()
	metrics.LedgerPostings.WithLabelValues(string(domain.OpDebit)).Inc()
	metrics.LedgerPostings.WithLabelValues(string(domain.OpCredit)).Inc()
	s.audit.LogTransfer(ctx, t)
	s.log.Info("transfer completed", "transfer_id", t.ID, "from", t.FromUserID, "to", t.ToUserID, "amount", t.Amount.StringFixed(2))

	payload := map[string]any{
		"transfer_id": t.ID,
		"amount":      t.Amount.StringFixed(2),
		"from":        t.FromUserID,
		"to":          t.ToUserID,
	}
	notify(ctx, s.notifier, t.FromUserID, NotifyTransferSent, payload)
	notify(ctx, s.notifier, t.ToUserID, NotifyTransferReceived, payload)
	return res, nil
}

// Request records a merchant-originated transfer for admin review. Nothing
// moves on the ledger until an admin marks it completed.
func (s *TransferService) Request(ctx context.Context, in TransferInput) (*domain.Transfer, error) {
	amount, err := domain.NormalizeAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	recipient, err := s.ResolveRecipient(ctx, in.To)
	if err != nil {
		return nil, err
	}
	if recipient.ID == in.FromUserID {
		return nil, domain.ErrSelfTransfer
	}

	t := &domain.Transfer{
		Reference:   newReference("TR"),
		FromUserID:  in.FromUserID,
		ToUserID:    recipient.ID,
		Amount:      amount,
		Status:      domain.TransferPending,
		Type:        domain.TransferTypeMerchant,
		Description: in.Description,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertTransfer(ctx, t); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	notifyAdmins(ctx, s.notifier, NotifyTransferRequested, t)
	return t, nil
}

// UpdateStatus is the admin review path for transfers created by Request.
// Moving one to completed posts it on the ledger; completed and rejected
// transfers are final.
func (s *TransferService) UpdateStatus(ctx context.Context, adminID, id int64, status domain.TransferStatus) (*domain.Transfer, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	var updated *domain.Transfer
	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.LockTransfer(ctx, id)
		if err != nil {
			return err
		}
		if t.Status == domain.TransferCompleted || t.Status == domain.TransferRejected {
			return domain.ErrAlreadyProcessed
		}
		if t.Status == status {
			return domain.ErrInvalidStatus
		}
		if status == domain.TransferCompleted {
			if _, _, err := s.ledger.transferTx(ctx, tx, t.FromUserID, t.ToUserID, t.Amount, "transfer", t.Reference); err != nil {
				return err
			}
		}
		if err := tx.UpdateTransferStatus(ctx, id, status); err != nil {
			return fmt.Errorf("update transfer status: %w", err)
		}
		t.Status = status
		updated = t
		if status == domain.TransferCompleted {
			return enqueue(ctx, tx, domain.EventTransferCompleted, t.ID, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionTransferStatus, map[string]interface{}{
		"transfer_id": id,
		"status":      string(status),
	})
	if updated.Status == domain.TransferCompleted {
		metrics.Transfers.Inc()
		notify(ctx, s.notifier, updated.ToUserID, NotifyTransferReceived, map[string]any{
			"transfer_id": updated.ID,
			"amount":      updated.Amount.StringFixed(2),
			"from":        updated.FromUserID,
		})
	}
	return updated, nil
}

func (s *TransferService) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Transfer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.reader.ListTransfersByUser(ctx, userID, limit)
}
