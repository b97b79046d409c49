package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places every stored amount carries.
const MoneyPlaces = 2

// MaxAmountDigits is the number of integer digits a NUMERIC(18,2) column holds.
const MaxAmountDigits = 16

// maxInputScale bounds the fractional digits accepted before rounding.
const maxInputScale = 18

var (
	hundred = decimal.NewFromInt(100)

	// MaxAmount is the smallest amount that no longer fits in storage.
	MaxAmount = decimal.New(1, MaxAmountDigits)
)

// Round2 rounds half away from zero to cents. All derived amounts go through here.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// NormalizeAmount rounds a caller supplied amount to cents. It fails with
// ErrInvalidAmount when the rounded value is not positive or does not fit
// below MaxAmount. The magnitude is checked on the exponent before any
// arithmetic, so inputs like 1e20000000 are rejected without expanding them.
func NormalizeAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if d.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	exp := d.Exponent()
	if exp > MaxAmountDigits || exp < -maxInputScale {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.NumDigits()+int(exp) > MaxAmountDigits {
		return decimal.Zero, ErrInvalidAmount
	}
	d = Round2(d)
	if !d.IsPositive() || d.GreaterThanOrEqual(MaxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// PercentOf returns round2(amount * pct / 100).
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(pct).Div(hundred))
}
