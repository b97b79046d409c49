package repository

import (
	"context"

	"cashback_platform/internal/domain"

	"github.com/jackc/pgx/v5"
)

type TransferRepository struct {
	db querier
}

func NewTransferRepository(db querier) *TransferRepository {
	return &TransferRepository{db: db}
}

const transferColumns = `id, reference, from_user_id, to_user_id, amount, status, type, description, created_at, updated_at`

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var t domain.Transfer
	if err := row.Scan(&t.ID, &t.Reference, &t.FromUserID, &t.ToUserID, &t.Amount,
		&t.Status, &t.Type, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *TransferRepository) InsertTransfer(ctx context.Context, t *domain.Transfer) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO transfers (reference, from_user_id, to_user_id, amount, status, type, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, t.Reference, t.FromUserID, t.ToUserID, t.Amount, t.Status, t.Type, t.Description,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return mapErr(err)
}

func (r *TransferRepository) GetTransfer(ctx context.Context, id int64) (*domain.Transfer, error) {
	return scanTransfer(r.db.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id))
}

func (r *TransferRepository) LockTransfer(ctx context.Context, id int64) (*domain.Transfer, error) {
	return scanTransfer(r.db.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id))
}

func (r *TransferRepository) UpdateTransferStatus(ctx context.Context, id int64, status domain.TransferStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transfers SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListTransfersByUser returns transfers sent or received by the user.
func (r *TransferRepository) ListTransfersByUser(ctx context.Context, userID int64, limit int) ([]domain.Transfer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
