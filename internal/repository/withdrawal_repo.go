package repository

import (
	"context"
	"encoding/json"

	"cashback_platform/internal/domain"

	"github.com/jackc/pgx/v5"
)

type WithdrawalRepository struct {
	db querier
}

func NewWithdrawalRepository(db querier) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

const withdrawalColumns = `id, reference, user_id, merchant_id, amount, fee_amount, net_amount, fee_percentage,
	status, bank_details, admin_notes, created_at, processed_at, processed_by`

// GetWithdrawal retrieves withdrawal by ID
func (r *WithdrawalRepository) GetWithdrawal(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	return scanWithdrawal(r.db.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id))
}

// LockWithdrawal must run inside a transaction.
func (r *WithdrawalRepository) LockWithdrawal(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	return scanWithdrawal(r.db.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id))
}

// ListWithdrawalsByUser retrieves the user's withdrawals, newest first
func (r *WithdrawalRepository) ListWithdrawalsByUser(ctx context.Context, userID int64, limit int) ([]domain.WithdrawalRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWithdrawals(rows)
}

// ListWithdrawalsByStatus returns the oldest requests first so admins work the queue in order
func (r *WithdrawalRepository) ListWithdrawalsByStatus(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]domain.WithdrawalRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE status = $1
		ORDER BY id ASC
		LIMIT $2
	`, status, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWithdrawals(rows)
}

// InsertWithdrawal creates a new withdrawal request
func (r *WithdrawalRepository) InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	bank, err := json.Marshal(w.Bank)
	if err != nil {
		return err
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO withdrawal_requests (reference, user_id, merchant_id, amount, fee_amount, net_amount,
			fee_percentage, status, bank_details, admin_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, w.Reference, w.UserID, w.MerchantID, w.Amount, w.FeeAmount, w.NetAmount,
		w.FeePercentage, w.Status, bank, w.AdminNotes,
	).Scan(&w.ID, &w.CreatedAt)
	return mapErr(err)
}

// UpdateWithdrawal persists the decision fields
func (r *WithdrawalRepository) UpdateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, admin_notes = $3, processed_at = $4, processed_by = $5
		WHERE id = $1
	`, w.ID, w.Status, w.AdminNotes, w.ProcessedAt, w.ProcessedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	var bank []byte

	if err := row.Scan(
		&w.ID, &w.Reference, &w.UserID, &w.MerchantID, &w.Amount, &w.FeeAmount, &w.NetAmount, &w.FeePercentage,
		&w.Status, &bank, &w.AdminNotes, &w.CreatedAt, &w.ProcessedAt, &w.ProcessedBy,
	); err != nil {
		return nil, mapErr(err)
	}

	if len(bank) > 0 {
		if err := json.Unmarshal(bank, &w.Bank); err != nil {
			return nil, err
		}
	}

	return &w, nil
}

func scanWithdrawals(rows pgx.Rows) ([]domain.WithdrawalRequest, error) {
	var withdrawals []domain.WithdrawalRequest

	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, *w)
	}

	return withdrawals, rows.Err()
}
