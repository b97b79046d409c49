package repository

import (
	"context"

	"cashback_platform/internal/domain"

	"github.com/jackc/pgx/v5"
)

type LedgerRepository struct {
	db querier
}

func NewLedgerRepository(db querier) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const accountColumns = `user_id, balance, held, total_earned, total_spent, updated_at`

func scanAccount(row pgx.Row) (domain.LedgerAccount, error) {
	var a domain.LedgerAccount
	err := row.Scan(&a.UserID, &a.Balance, &a.Held, &a.TotalEarned, &a.TotalSpent, &a.UpdatedAt)
	return a, mapErr(err)
}

// EnsureAccount returns the account, creating a zero row on first access.
func (r *LedgerRepository) EnsureAccount(ctx context.Context, userID int64) (domain.LedgerAccount, error) {
	return scanAccount(r.db.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO ledger_accounts (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING `+accountColumns+`
		)
		SELECT `+accountColumns+` FROM ins
		UNION ALL
		SELECT `+accountColumns+` FROM ledger_accounts WHERE user_id = $1
		LIMIT 1
	`, userID))
}

// LockAccount must run inside a transaction.
func (r *LedgerRepository) LockAccount(ctx context.Context, userID int64) (domain.LedgerAccount, error) {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO ledger_accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return domain.LedgerAccount{}, err
	}
	return scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE user_id = $1 FOR UPDATE`, userID))
}

func (r *LedgerRepository) SaveAccount(ctx context.Context, a domain.LedgerAccount) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ledger_accounts
		SET balance = $2, held = $3, total_earned = $4, total_spent = $5, updated_at = NOW()
		WHERE user_id = $1
	`, a.UserID, a.Balance, a.Held, a.TotalEarned, a.TotalSpent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const entryColumns = `id, user_id, op, reason, amount, balance_after,
	COALESCE(idempotency_key, ''), ref_type, reference, created_at`

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	if err := row.Scan(&e.ID, &e.UserID, &e.Op, &e.Reason, &e.Amount, &e.BalanceAfter,
		&e.IdempotencyKey, &e.RefType, &e.Reference, &e.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *LedgerRepository) EntryByKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	return scanEntry(r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE idempotency_key = $1`, key))
}

func (r *LedgerRepository) InsertEntry(ctx context.Context, e *domain.LedgerEntry) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO ledger_entries (user_id, op, reason, amount, balance_after, idempotency_key, ref_type, reference)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		RETURNING id, created_at
	`, e.UserID, e.Op, e.Reason, e.Amount, e.BalanceAfter, e.IdempotencyKey, e.RefType, e.Reference,
	).Scan(&e.ID, &e.CreatedAt)
	return mapErr(err)
}

func (r *LedgerRepository) ListEntries(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
