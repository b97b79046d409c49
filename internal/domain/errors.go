package domain

import "errors"

// Kinded errors carry a stable machine-readable kind for API responses.
type kindedError struct {
	kind string
	msg  string
}

func (e *kindedError) Error() string { return e.msg }

func newKinded(kind, msg string) error {
	return &kindedError{kind: kind, msg: msg}
}

var (
	ErrInvalidAmount       = newKinded("invalid_amount", "amount must be a positive number")
	ErrInsufficientBalance = newKinded("insufficient_balance", "insufficient balance")
	ErrMerchantNotFound    = newKinded("merchant_not_found", "merchant not found")
	ErrMerchantNotApproved = newKinded("merchant_not_approved", "merchant is not approved")
	ErrRecipientNotFound   = newKinded("recipient_not_found", "recipient not found")
	ErrSelfTransfer        = newKinded("self_transfer", "cannot transfer to yourself")
	ErrBelowMinimum        = newKinded("below_minimum", "amount is below the minimum withdrawal")
	ErrAlreadyProcessed    = newKinded("already_processed", "request has already been processed")
	ErrNotFound            = newKinded("not_found", "not found")
	ErrInvalidRate         = newKinded("invalid_rate", "rates must be numbers between 0 and 100")
	ErrInvalidStatus       = newKinded("invalid_status", "status transition not allowed")
	ErrInvalidReferral     = newKinded("invalid_referral", "invalid invitation code")
	ErrAlreadyReferred     = newKinded("already_referred", "user already has a referrer")
	ErrInvalidPayment      = newKinded("invalid_payment_method", "unsupported payment method")
)

// KindOf returns the machine-readable kind of a domain error, or "" for
// anything that is not part of the taxonomy.
func KindOf(err error) string {
	var ke *kindedError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return ""
}

// MessageOf returns the human-readable text of a domain error without any
// wrapping context, or "" for non-domain errors.
func MessageOf(err error) string {
	var ke *kindedError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return ""
}
