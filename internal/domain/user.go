package domain

import "time"

type UserType string

const (
	UserClient   UserType = "client"
	UserMerchant UserType = "merchant"
	UserAdmin    UserType = "admin"
)

type User struct {
	ID             int64     `db:"id" json:"id"`
	Type           UserType  `db:"type" json:"type"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email,omitempty"`
	Phone          string    `db:"phone" json:"phone,omitempty"`
	InvitationCode string    `db:"invitation_code" json:"invitation_code,omitempty"`
	ReferredBy     *int64    `db:"referred_by" json:"referred_by,omitempty"`
	TgID           int64     `db:"tg_id" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Merchant is a store owned by a merchant user. Sales settle against the
// owner's ledger.
type Merchant struct {
	ID          int64     `db:"id" json:"id"`
	OwnerUserID int64     `db:"owner_user_id" json:"owner_user_id"`
	StoreName   string    `db:"store_name" json:"store_name"`
	Approved    bool      `db:"approved" json:"approved"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
