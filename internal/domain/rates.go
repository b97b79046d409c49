package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateConfig is the single active row of platform rates. Rates are stored as
// percentages ("5" means 5%).
type RateConfig struct {
	PlatformFeeRate        decimal.Decimal `db:"platform_fee_rate" json:"platform_fee_rate"`
	ClientCashbackRate     decimal.Decimal `db:"client_cashback_rate" json:"client_cashback_rate"`
	ReferralBonusRate      decimal.Decimal `db:"referral_bonus_rate" json:"referral_bonus_rate"`
	MerchantCommissionRate decimal.Decimal `db:"merchant_commission_rate" json:"merchant_commission_rate"` // legacy, usually 0
	WithdrawalFeeRate      decimal.Decimal `db:"withdrawal_fee_rate" json:"withdrawal_fee_rate"`
	MinWithdrawal          decimal.Decimal `db:"min_withdrawal" json:"min_withdrawal"`
	UpdatedAt              time.Time       `db:"updated_at" json:"updated_at"`
	UpdatedBy              int64           `db:"updated_by" json:"updated_by"`
}

// Validate checks every rate is within [0,100] percent and the minimum is not negative.
func (r RateConfig) Validate() error {
	for _, v := range []decimal.Decimal{
		r.PlatformFeeRate, r.ClientCashbackRate, r.ReferralBonusRate,
		r.MerchantCommissionRate, r.WithdrawalFeeRate,
	} {
		if v.IsNegative() || v.GreaterThan(hundred) {
			return ErrInvalidRate
		}
	}
	if r.MinWithdrawal.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}

// RateConfigHistory is an append-only copy of every accepted update.
type RateConfigHistory struct {
	ID int64 `db:"id" json:"id"`
	RateConfig
}
