package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/fees"
	"cashback_platform/internal/logger"
	"cashback_platform/internal/metrics"
	"cashback_platform/internal/store"

	"github.com/shopspring/decimal"
)

type SettleInput struct {
	ClientID       int64
	MerchantID     int64
	Amount         decimal.Decimal
	PaymentMethod  string
	IdempotencyKey string
	Notes          string
}

type SettlementResult struct {
	Transaction    domain.Transaction `json:"transaction"`
	CashbackEarned decimal.Decimal    `json:"cashback_earned"`
	ReferralBonus  decimal.Decimal    `json:"referral_bonus"`
	Breakdown      fees.Breakdown     `json:"breakdown"`
	Replayed       bool               `json:"replayed"`
}

// SettlementService records sales and applies their ledger effects. The
// transaction row, every credit and the outbox event commit together.
type SettlementService struct {
	tx        store.TxRunner
	reader    store.TransactionReader
	merchants store.MerchantDirectory
	users     store.UserDirectory
	rates     *RateService
	ledger    *LedgerService
	notifier  Notifier
	audit     *AuditService
	log       *slog.Logger
}

func NewSettlementService(
	tx store.TxRunner,
	reader store.TransactionReader,
	merchants store.MerchantDirectory,
	users store.UserDirectory,
	rates *RateService,
	ledger *LedgerService,
	notifier Notifier,
	audit *AuditService,
) *SettlementService {
	return &SettlementService{
		tx:        tx,
		reader:    reader,
		merchants: merchants,
		users:     users,
		rates:     rates,
		ledger:    ledger,
		notifier:  notifier,
		audit:     audit,
		log:       logger.With("component", "settlement"),
	}
}

// Quote returns the fee split of amount under the current rates.
func (s *SettlementService) Quote(ctx context.Context, amount decimal.Decimal) (fees.Breakdown, error) {
	rates, err := s.rates.Current(ctx)
	if err != nil {
		return fees.Breakdown{}, err
	}
	return fees.Calculate(amount, rates)
}

// Settle records a completed sale and credits cashback to the client and the
// referral bonus to the client's referrer. With a repeated IdempotencyKey it
// returns the original result and posts nothing.
func (s *SettlementService) Settle(ctx context.Context, in SettleInput) (*SettlementResult, error) {
	res, err := s.settle(ctx, in)
	if err != nil {
		if kind := domain.KindOf(err); kind != "" {
			metrics.Rejections.WithLabelValues("settle", kind).Inc()
		}
		return nil, err
	}
	return res, nil
}

func (s *SettlementService) settle(ctx context.Context, in SettleInput) (*SettlementResult, error) {
	merchant, err := s.merchants.GetMerchant(ctx, in.MerchantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	if !merchant.Approved {
		return nil, domain.ErrMerchantNotApproved
	}
	if _, err := domain.NormalizeAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = domain.PaymentCash
	}
	if !domain.ValidPaymentMethod(in.PaymentMethod) {
		return nil, domain.ErrInvalidPayment
	}
	if _, err := s.users.GetUser(ctx, in.ClientID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	if in.PaymentMethod == domain.PaymentBalance && merchant.OwnerUserID == in.ClientID {
		return nil, domain.ErrSelfTransfer
	}

	rates, err := s.rates.Current(ctx)
	if err != nil {
		return nil, err
	}
	breakdown, err := fees.Calculate(in.Amount, rates)
	if err != nil {
		return nil, err
	}

	var res *SettlementResult
	err = s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if in.IdempotencyKey != "" {
			prev, err := tx.GetTransactionByKey(ctx, in.IdempotencyKey)
			if err == nil {
				res = replayResult(prev)
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("lookup idempotency key: %w", err)
			}
		}

		referral, err := tx.GetActiveReferral(ctx, in.ClientID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get referral: %w", err)
		}

		t := &domain.Transaction{
			Reference:        newReference("TX"),
			UserID:           in.ClientID,
			MerchantID:       merchant.ID,
			Amount:           breakdown.Amount,
			CashbackAmount:   breakdown.ClientCashback,
			PlatformFee:      breakdown.PlatformFee,
			MerchantReceives: breakdown.MerchantReceives,
			ReferralBonus:    decimal.Zero,
			Status:           domain.TransactionCompleted,
			PaymentMethod:    in.PaymentMethod,
			IdempotencyKey:   in.IdempotencyKey,
			Notes:            in.Notes,
		}
		if referral != nil && breakdown.ReferralBonus.IsPositive() {
			referrerID := referral.ReferrerID
			t.ReferrerID = &referrerID
			t.ReferralBonus = breakdown.ReferralBonus
		}
		if err := lockSettlement(ctx, tx, t, merchant.OwnerUserID); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		id := strconv.FormatInt(t.ID, 10)

		if in.PaymentMethod == domain.PaymentBalance {
			if _, _, err := s.ledger.post(ctx, tx, Posting{
				UserID: in.ClientID, Op: domain.OpDebit, Reason: domain.ReasonPurchase,
				Amount: t.Amount, IdempotencyKey: "purchase:" + id, RefType: "transaction", Reference: t.Reference,
			}); err != nil {
				return err
			}
			if t.MerchantReceives.IsPositive() {
				if _, _, err := s.ledger.post(ctx, tx, Posting{
					UserID: merchant.OwnerUserID, Op: domain.OpCredit, Reason: domain.ReasonSale,
					Amount: t.MerchantReceives, IdempotencyKey: "sale:" + id, RefType: "transaction", Reference: t.Reference,
				}); err != nil {
					return err
				}
			}
		}

		if t.CashbackAmount.IsPositive() {
			if _, _, err := s.ledger.post(ctx, tx, Posting{
				UserID: in.ClientID, Op: domain.OpCredit, Reason: domain.ReasonCashback,
				Amount: t.CashbackAmount, IdempotencyKey: "cashback:" + id, RefType: "transaction", Reference: t.Reference,
			}); err != nil {
				return err
			}
		}

		if t.ReferrerID != nil {
			if _, _, err := s.ledger.post(ctx, tx, Posting{
				UserID: *t.ReferrerID, Op: domain.OpCredit, Reason: domain.ReasonReferral,
				Amount: t.ReferralBonus, IdempotencyKey: "referral:" + id, RefType: "transaction", Reference: t.Reference,
			}); err != nil {
				return err
			}
			if err := tx.AccrueReferral(ctx, *t.ReferrerID, in.ClientID, t.ReferralBonus); err != nil {
				return fmt.Errorf("accrue referral: %w", err)
			}
		}

		if err := enqueue(ctx, tx, domain.EventTransactionSettled, t.ID, t); err != nil {
			return err
		}

		res = &SettlementResult{
			Transaction:    *t,
			CashbackEarned: t.CashbackAmount,
			ReferralBonus:  t.ReferralBonus,
			Breakdown:      breakdown,
		}
		return nil
	})
	if errors.Is(err, store.ErrConflict) && in.IdempotencyKey != "" {
		// a concurrent request with the same key won the insert
		prev, lookupErr := s.reader.GetTransactionByIdempotencyKey(ctx, in.IdempotencyKey)
		if lookupErr != nil {
			return nil, fmt.Errorf("settle replay lookup: %w", lookupErr)
		}
		return replayResult(prev), nil
	}
	if err != nil {
		return nil, err
	}
	if res.Replayed {
		s.log.Info("settlement replayed", "transaction_id", res.Transaction.ID, "key", in.IdempotencyKey)
		return res, nil
	}

	t := &res.Transaction
	metrics.Settlements.WithLabelValues(t.PaymentMethod).Inc()
	s.audit.LogSettlement(ctx, t)
	s.log.Info("transaction settled",
		"transaction_id", t.ID, "client_id", t.UserID, "merchant_id", t.MerchantID,
		"amount", t.Amount.StringFixed(2), "cashback", t.CashbackAmount.StringFixed(2))
	if t.CashbackAmount.IsPositive() {
		notify(ctx, s.notifier, t.UserID, NotifyCashbackEarned, map[string]any{
			"transaction_id": t.ID,
			"amount":         t.CashbackAmount.StringFixed(2),
		})
	}
	return res, nil
}

func replayResult(t *domain.Transaction) *SettlementResult {
	return &SettlementResult{
		Transaction:    *t,
		CashbackEarned: t.CashbackAmount,
		ReferralBonus:  t.ReferralBonus,
		Breakdown: fees.Breakdown{
			Amount:           t.Amount,
			PlatformFee:      t.PlatformFee,
			ClientCashback:   t.CashbackAmount,
			ReferralBonus:    t.ReferralBonus,
			MerchantReceives: t.MerchantReceives,
		},
		Replayed: true,
	}
}

// UpdateStatus lets an admin cancel or refund a completed sale. Cashback,
// referral and balance-payment effects are reversed in the same transaction;
// if the client already spent the cashback the change fails with
// ErrInsufficientBalance.
func (s *SettlementService) UpdateStatus(ctx context.Context, adminID, txID int64, status domain.TransactionStatus, notes string) (*domain.Transaction, error) {
	current, err := s.reader.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	// merchant ownership never changes, so it is resolved outside the transaction
	var merchantOwnerID int64
	if current.PaymentMethod == domain.PaymentBalance {
		merchant, err := s.merchants.GetMerchant(ctx, current.MerchantID)
		if err != nil {
			return nil, fmt.Errorf("get merchant: %w", err)
		}
		merchantOwnerID = merchant.OwnerUserID
	}

	var updated *domain.Transaction
	err = s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if t.Status == status {
			return domain.ErrAlreadyProcessed
		}
		if !t.Status.CanTransition(status) {
			return domain.ErrInvalidStatus
		}

		if t.Status == domain.TransactionCompleted {
			if err := s.reverse(ctx, tx, t, merchantOwnerID); err != nil {
				return err
			}
		}

		if err := tx.UpdateTransactionStatus(ctx, t.ID, status, notes); err != nil {
			return fmt.Errorf("update transaction status: %w", err)
		}
		prev := t.Status
		t.Status = status
		if notes != "" {
			t.Notes = notes
		}
		updated = t
		return enqueue(ctx, tx, domain.EventTransactionStatus, t.ID, map[string]any{
			"transaction_id": t.ID,
			"from":           prev,
			"to":             status,
			"admin_id":       adminID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionTransactionStatus, map[string]interface{}{
		"transaction_id": txID,
		"status":         string(status),
	})
	return updated, nil
}

func (s *SettlementService) reverse(ctx context.Context, tx store.Tx, t *domain.Transaction, merchantOwnerID int64) error {
	if err := lockSettlement(ctx, tx, t, merchantOwnerID); err != nil {
		return err
	}
	id := strconv.FormatInt(t.ID, 10)
	post := func(p Posting) error {
		p.RefType = "transaction"
		p.Reference = t.Reference
		_, _, err := s.ledger.post(ctx, tx, p)
		return err
	}

	if t.CashbackAmount.IsPositive() {
		if err := post(Posting{UserID: t.UserID, Op: domain.OpReverseCredit, Reason: domain.ReasonReversal,
			Amount: t.CashbackAmount, IdempotencyKey: "cashback-reversal:" + id}); err != nil {
			return err
		}
	}
	if t.ReferrerID != nil && t.ReferralBonus.IsPositive() {
		if err := post(Posting{UserID: *t.ReferrerID, Op: domain.OpReverseCredit, Reason: domain.ReasonReversal,
			Amount: t.ReferralBonus, IdempotencyKey: "referral-reversal:" + id}); err != nil {
			return err
		}
		if err := tx.AccrueReferral(ctx, *t.ReferrerID, t.UserID, t.ReferralBonus.Neg()); err != nil {
			return fmt.Errorf("reverse referral accrual: %w", err)
		}
	}
	if t.PaymentMethod == domain.PaymentBalance {
		if t.MerchantReceives.IsPositive() {
			if err := post(Posting{UserID: merchantOwnerID, Op: domain.OpReverseCredit, Reason: domain.ReasonReversal,
				Amount: t.MerchantReceives, IdempotencyKey: "sale-reversal:" + id}); err != nil {
				return err
			}
		}
		if err := post(Posting{UserID: t.UserID, Op: domain.OpReverseDebit, Reason: domain.ReasonReversal,
			Amount: t.Amount, IdempotencyKey: "purchase-reversal:" + id}); err != nil {
			return err
		}
	}
	return nil
}

func (s *SettlementService) Get(ctx context.Context, id int64) (*domain.Transaction, error) {
	return s.reader.GetTransaction(ctx, id)
}

func (s *SettlementService) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.reader.ListTransactionsByUser(ctx, userID, limit)
}

// lockSettlement locks every account a sale posts to: the client, the store
// owner when paid from balance and the referrer when a bonus applies.
func lockSettlement(ctx context.Context, tx store.Tx, t *domain.Transaction, ownerID int64) error {
	ids := []int64{t.UserID}
	if t.PaymentMethod == domain.PaymentBalance && ownerID != 0 {
		ids = append(ids, ownerID)
	}
	if t.ReferrerID != nil {
		ids = append(ids, *t.ReferrerID)
	}
	return lockAccounts(ctx, tx, ids...)
}
