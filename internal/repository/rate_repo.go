package repository

import (
	"context"

	"cashback_platform/internal/domain"
)

type RateRepository struct {
	db querier
}

func NewRateRepository(db querier) *RateRepository {
	return &RateRepository{db: db}
}

const rateColumns = `platform_fee_rate, client_cashback_rate, referral_bonus_rate, merchant_commission_rate,
	withdrawal_fee_rate, min_withdrawal, updated_at, updated_by`

// GetRates returns domain.ErrNotFound until the first update is saved.
func (r *RateRepository) GetRates(ctx context.Context) (*domain.RateConfig, error) {
	var c domain.RateConfig
	err := r.db.QueryRow(ctx, `SELECT `+rateColumns+` FROM rate_config WHERE id = 1`).Scan(
		&c.PlatformFeeRate, &c.ClientCashbackRate, &c.ReferralBonusRate, &c.MerchantCommissionRate,
		&c.WithdrawalFeeRate, &c.MinWithdrawal, &c.UpdatedAt, &c.UpdatedBy,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// SaveRates replaces the active row and appends a history copy.
func (r *RateRepository) SaveRates(ctx context.Context, c domain.RateConfig) error {
	args := []any{
		c.PlatformFeeRate, c.ClientCashbackRate, c.ReferralBonusRate, c.MerchantCommissionRate,
		c.WithdrawalFeeRate, c.MinWithdrawal, c.UpdatedAt, c.UpdatedBy,
	}
	if _, err := r.db.Exec(ctx, `
		INSERT INTO rate_config (id, `+rateColumns+`)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			platform_fee_rate = EXCLUDED.platform_fee_rate,
			client_cashback_rate = EXCLUDED.client_cashback_rate,
			referral_bonus_rate = EXCLUDED.referral_bonus_rate,
			merchant_commission_rate = EXCLUDED.merchant_commission_rate,
			withdrawal_fee_rate = EXCLUDED.withdrawal_fee_rate,
			min_withdrawal = EXCLUDED.min_withdrawal,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`, args...); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO rate_config_history (`+rateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, args...)
	return err
}

func (r *RateRepository) RateHistory(ctx context.Context, limit int) ([]domain.RateConfigHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, `+rateColumns+`
		FROM rate_config_history
		ORDER BY id DESC
		LIMIT $1
	`, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RateConfigHistory
	for rows.Next() {
		var h domain.RateConfigHistory
		if err := rows.Scan(&h.ID,
			&h.PlatformFeeRate, &h.ClientCashbackRate, &h.ReferralBonusRate, &h.MerchantCommissionRate,
			&h.WithdrawalFeeRate, &h.MinWithdrawal, &h.UpdatedAt, &h.UpdatedBy,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
