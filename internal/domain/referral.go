package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferralStatus string

const (
	ReferralActive   ReferralStatus = "active"
	ReferralInactive ReferralStatus = "inactive"
)

// Referral links a referrer to a referred user. Bonus is the sum of referral
// credits actually posted to the referrer's ledger.
type Referral struct {
	ID         int64           `db:"id" json:"id"`
	ReferrerID int64           `db:"referrer_id" json:"referrer_id"`
	ReferredID int64           `db:"referred_id" json:"referred_id"`
	Bonus      decimal.Decimal `db:"bonus" json:"bonus"`
	Status     ReferralStatus  `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

type ReferralStats struct {
	TotalReferrals  int             `json:"total_referrals"`
	ActiveReferrals int             `json:"active_referrals"`
	TotalBonus      decimal.Decimal `json:"total_bonus"`
}
