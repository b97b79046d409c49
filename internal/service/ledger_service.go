package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/logger"
	"cashback_platform/internal/metrics"
	"cashback_platform/internal/store"

	"github.com/shopspring/decimal"
)

// Posting is one ledger mutation.
type Posting struct {
	UserID         int64
	Op             domain.EntryOp
	Reason         string
	Amount         decimal.Decimal
	IdempotencyKey string
	RefType        string
	Reference      string
}

// LedgerService owns every balance change. Mutations run inside a storage
// transaction holding the account row lock, so concurrent callers serialize
// on the same user.
type LedgerService struct {
	tx     store.TxRunner
	reader store.LedgerReader
	audit  *AuditService
	log    *slog.Logger
}

func NewLedgerService(tx store.TxRunner, reader store.LedgerReader, audit *AuditService) *LedgerService {
	return &LedgerService{
		tx:     tx,
		reader: reader,
		audit:  audit,
		log:    logger.With("component", "ledger"),
	}
}

// GetBalance returns the user's account, creating a zero one on first access.
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (domain.LedgerAccount, error) {
	return s.reader.EnsureAccount(ctx, userID)
}

// History returns the newest journal entries first.
func (s *LedgerService) History(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.reader.ListEntries(ctx, userID, limit)
}

// Credit adds amount to balance and total earned. A non-empty key makes the
// call idempotent: a key that was already posted returns the current account
// unchanged.
func (s *LedgerService) Credit(ctx context.Context, userID int64, amount decimal.Decimal, reason, key string) (domain.LedgerAccount, error) {
	var acc domain.LedgerAccount
	var applied bool
	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		acc, applied, err = s.post(ctx, tx, Posting{
			UserID:         userID,
			Op:             domain.OpCredit,
			Reason:         reason,
			Amount:         amount,
			IdempotencyKey: key,
		})
		return err
	})
	if err != nil {
		return domain.LedgerAccount{}, err
	}
	if applied {
		metrics.LedgerPostings.WithLabelValues(string(domain.OpCredit)).Inc()
		s.audit.LogBalanceChange(ctx, userID, domain.Round2(amount), reason, nil)
	}
	return acc, nil
}

// Debit removes amount as finalized spend (balance and total spent).
func (s *LedgerService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, reason string) (domain.LedgerAccount, error) {
	var acc domain.LedgerAccount
	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		acc, _, err = s.post(ctx, tx, Posting{
			UserID: userID,
			Op:     domain.OpDebit,
			Reason: reason,
			Amount: amount,
		})
		return err
	})
	if err != nil {
		return domain.LedgerAccount{}, err
	}
	metrics.LedgerPostings.WithLabelValues(string(domain.OpDebit)).Inc()
	s.audit.LogBalanceChange(ctx, userID, domain.Round2(amount).Neg(), reason, nil)
	return acc, nil
}

// Transfer moves amount between two accounts in one transaction.
func (s *LedgerService) Transfer(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal) (from, to domain.LedgerAccount, err error) {
	err = s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		from, to, err = s.transferTx(ctx, tx, fromUserID, toUserID, amount, "", "")
		return err
	})
	if err != nil {
		return domain.LedgerAccount{}, domain.LedgerAccount{}, err
	}
	metrics.LedgerPostings.WithLabelValues(string(domain.OpDebit)).Inc()
	metrics.LedgerPostings.WithLabelValues(string(domain.OpCredit)).Inc()
	return from, to, nil
}

// transferTx locks both rows before touching either balance.
func (s *LedgerService) transferTx(ctx context.Context, tx store.Tx, fromUserID, toUserID int64, amount decimal.Decimal, refType, ref string) (from, to domain.LedgerAccount, err error) {
	if fromUserID == toUserID {
		return from, to, domain.ErrSelfTransfer
	}
	if _, err = domain.NormalizeAmount(amount); err != nil {
		return from, to, err
	}

	if err = lockAccounts(ctx, tx, fromUserID, toUserID); err != nil {
		return from, to, err
	}

	from, _, err = s.post(ctx, tx, Posting{
		UserID: fromUserID, Op: domain.OpDebit, Reason: domain.ReasonTransferOut,
		Amount: amount, RefType: refType, Reference: ref,
	})
	if err != nil {
		return from, to, err
	}
	to, _, err = s.post(ctx, tx, Posting{
		UserID: toUserID, Op: domain.OpCredit, Reason: domain.ReasonTransferIn,
		Amount: amount, RefType: refType, Reference: ref,
	})
	return from, to, err
}

// lockAccounts locks each distinct account once, in ascending id order. Every
// transaction that posts to more than one account takes its locks here first.
func lockAccounts(ctx context.Context, tx store.Tx, userIDs ...int64) error {
	ids := append([]int64(nil), userIDs...)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if _, err := tx.LockAccount(ctx, id); err != nil {
			return fmt.Errorf("lock account %d: %w", id, err)
		}
	}
	return nil
}

// post applies p to the locked account and journals it. applied is false when
// the idempotency key was already posted.
func (s *LedgerService) post(ctx context.Context, tx store.Tx, p Posting) (acc domain.LedgerAccount, applied bool, err error) {
	amount, err := domain.NormalizeAmount(p.Amount)
	if err != nil {
		return acc, false, err
	}

	acc, err = tx.LockAccount(ctx, p.UserID)
	if err != nil {
		return acc, false, fmt.Errorf("lock account %d: %w", p.UserID, err)
	}

	if p.IdempotencyKey != "" {
		_, err := tx.EntryByKey(ctx, p.IdempotencyKey)
		if err == nil {
			s.log.Info("ledger posting replayed", "user_id", p.UserID, "key", p.IdempotencyKey)
			return acc, false, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return acc, false, fmt.Errorf("lookup entry %q: %w", p.IdempotencyKey, err)
		}
	}

	next, err := apply(acc, p.Op, amount)
	if err != nil {
		return acc, false, err
	}
	if err := tx.SaveAccount(ctx, next); err != nil {
		return acc, false, fmt.Errorf("save account %d: %w", p.UserID, err)
	}

	entry := &domain.LedgerEntry{
		UserID:         p.UserID,
		Op:             p.Op,
		Reason:         p.Reason,
		Amount:         amount,
		BalanceAfter:   next.Balance,
		IdempotencyKey: p.IdempotencyKey,
		RefType:        p.RefType,
		Reference:      p.Reference,
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return acc, false, fmt.Errorf("insert entry: %w", err)
	}
	return next, true, nil
}

// apply computes the account after op. It never lets balance or held go negative.
func apply(acc domain.LedgerAccount, op domain.EntryOp, amount decimal.Decimal) (domain.LedgerAccount, error) {
	switch op {
	case domain.OpCredit:
		acc.Balance = acc.Balance.Add(amount)
		acc.TotalEarned = acc.TotalEarned.Add(amount)
	case domain.OpDebit:
		acc.Balance = acc.Balance.Sub(amount)
		acc.TotalSpent = acc.TotalSpent.Add(amount)
	case domain.OpReverseCredit:
		acc.Balance = acc.Balance.Sub(amount)
		acc.TotalEarned = acc.TotalEarned.Sub(amount)
	case domain.OpReverseDebit:
		acc.Balance = acc.Balance.Add(amount)
		acc.TotalSpent = acc.TotalSpent.Sub(amount)
	case domain.OpHold:
		acc.Balance = acc.Balance.Sub(amount)
		acc.Held = acc.Held.Add(amount)
	case domain.OpRelease:
		acc.Balance = acc.Balance.Add(amount)
		acc.Held = acc.Held.Sub(amount)
	case domain.OpSettleHold:
		acc.Held = acc.Held.Sub(amount)
		acc.TotalSpent = acc.TotalSpent.Add(amount)
	default:
		return acc, fmt.Errorf("unknown ledger op %q", op)
	}
	if acc.Balance.IsNegative() {
		return acc, domain.ErrInsufficientBalance
	}
	if acc.Held.IsNegative() {
		return acc, fmt.Errorf("ledger: held amount of user %d would go negative", acc.UserID)
	}
	return acc, nil
}
