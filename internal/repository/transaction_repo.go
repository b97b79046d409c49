package repository

import (
	"context"

	"cashback_platform/internal/domain"

	"github.com/jackc/pgx/v5"
)

type TransactionRepository struct {
	db querier
}

func NewTransactionRepository(db querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, reference, user_id, merchant_id, amount, cashback_amount, platform_fee,
	merchant_receives, referral_bonus, referrer_id, status, payment_method,
	COALESCE(idempotency_key, ''), notes, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := row.Scan(
		&t.ID, &t.Reference, &t.UserID, &t.MerchantID, &t.Amount, &t.CashbackAmount, &t.PlatformFee,
		&t.MerchantReceives, &t.ReferralBonus, &t.ReferrerID, &t.Status, &t.PaymentMethod,
		&t.IdempotencyKey, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	return scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

func (r *TransactionRepository) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key))
}

// GetTransactionByKey is the in-transaction variant used for replay detection.
func (r *TransactionRepository) GetTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.GetTransactionByIdempotencyKey(ctx, key)
}

func (r *TransactionRepository) LockTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	return scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
}

func (r *TransactionRepository) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO transactions (reference, user_id, merchant_id, amount, cashback_amount, platform_fee,
			merchant_receives, referral_bonus, referrer_id, status, payment_method, idempotency_key, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13)
		RETURNING id, created_at, updated_at
	`, t.Reference, t.UserID, t.MerchantID, t.Amount, t.CashbackAmount, t.PlatformFee,
		t.MerchantReceives, t.ReferralBonus, t.ReferrerID, t.Status, t.PaymentMethod, t.IdempotencyKey, t.Notes,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return mapErr(err)
}

// UpdateTransactionStatus keeps the existing notes when notes is empty.
func (r *TransactionRepository) UpdateTransactionStatus(ctx context.Context, id int64, status domain.TransactionStatus, notes string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = $2, notes = COALESCE(NULLIF($3, ''), notes), updated_at = NOW()
		WHERE id = $1
	`, id, status, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListTransactionsByUser returns sales where the user is the client or owns the merchant.
func (r *TransactionRepository) ListTransactionsByUser(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		   OR merchant_id IN (SELECT id FROM merchants WHERE owner_user_id = $1)
		ORDER BY id DESC
		LIMIT $2
	`, userID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
