package repository

import (
	"context"

	"cashback_platform/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type ReferralRepository struct {
	db querier
}

func NewReferralRepository(db querier) *ReferralRepository {
	return &ReferralRepository{db: db}
}

const referralColumns = `id, referrer_id, referred_id, bonus, status, created_at`

func scanReferral(row pgx.Row) (*domain.Referral, error) {
	var ref domain.Referral
	if err := row.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.Bonus, &ref.Status, &ref.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &ref, nil
}

func (r *ReferralRepository) GetActiveReferral(ctx context.Context, referredID int64) (*domain.Referral, error) {
	return scanReferral(r.db.QueryRow(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE referred_id = $1 AND status = 'active'
	`, referredID))
}

// InsertReferral fails with store.ErrConflict when the user already has a referrer.
func (r *ReferralRepository) InsertReferral(ctx context.Context, ref *domain.Referral) error {
	if ref.Status == "" {
		ref.Status = domain.ReferralActive
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO referrals (referrer_id, referred_id, bonus, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, ref.ReferrerID, ref.ReferredID, ref.Bonus, ref.Status).Scan(&ref.ID, &ref.CreatedAt)
	return mapErr(err)
}

// AccrueReferral adds amount (negative on reversal) to the referral's bonus total.
func (r *ReferralRepository) AccrueReferral(ctx context.Context, referrerID, referredID int64, amount decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE referrals SET bonus = bonus + $3
		WHERE referrer_id = $1 AND referred_id = $2
	`, referrerID, referredID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ReferralRepository) ListReferralsByReferrer(ctx context.Context, referrerID int64) ([]domain.Referral, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY id DESC
	`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ref)
	}
	return out, rows.Err()
}
