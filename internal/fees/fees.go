// Package fees derives the money split of a sale and of a withdrawal from the
// active rate configuration. Everything here is pure.
package fees

import (
	"math"
	"strings"

	"cashback_platform/internal/domain"

	"github.com/shopspring/decimal"
)

// Breakdown is the split of one sale amount.
type Breakdown struct {
	Amount           decimal.Decimal `json:"amount"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	ClientCashback   decimal.Decimal `json:"client_cashback"`
	ReferralBonus    decimal.Decimal `json:"referral_bonus"`
	MerchantReceives decimal.Decimal `json:"merchant_receives"`
}

// Calculate splits amount using rates. Every derived amount is rounded half
// away from zero to cents and merchantReceives is taken as the remainder, so
// PlatformFee + MerchantReceives == Amount exactly.
func Calculate(amount decimal.Decimal, rates domain.RateConfig) (Breakdown, error) {
	amount, err := domain.NormalizeAmount(amount)
	if err != nil {
		return Breakdown{}, err
	}

	platformFee := domain.PercentOf(amount, rates.PlatformFeeRate)
	return Breakdown{
		Amount:           amount,
		PlatformFee:      platformFee,
		ClientCashback:   domain.PercentOf(amount, rates.ClientCashbackRate),
		ReferralBonus:    domain.PercentOf(amount, rates.ReferralBonusRate),
		MerchantReceives: amount.Sub(platformFee),
	}, nil
}

// Withdrawal is the fee split of a payout request.
type Withdrawal struct {
	Amount        decimal.Decimal `json:"amount"`
	FeeAmount     decimal.Decimal `json:"fee_amount"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
}

func WithdrawalFee(amount decimal.Decimal, rates domain.RateConfig) (Withdrawal, error) {
	amount, err := domain.NormalizeAmount(amount)
	if err != nil {
		return Withdrawal{}, err
	}
	fee := domain.PercentOf(amount, rates.WithdrawalFeeRate)
	return Withdrawal{
		Amount:        amount,
		FeeAmount:     fee,
		NetAmount:     amount.Sub(fee),
		FeePercentage: rates.WithdrawalFeeRate,
	}, nil
}

// ParseAmount parses a user supplied amount. Non-numeric input, NaN, infinities,
// non-positive values and amounts that do not fit in storage are rejected with
// ErrInvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return domain.NormalizeAmount(d)
}

// AmountFromFloat converts a JSON number.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return domain.NormalizeAmount(decimal.NewFromFloat(f))
}
