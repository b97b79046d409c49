package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/store"

	"github.com/shopspring/decimal"
)

// ReferralService links new users to the user whose invitation code they
// registered with. Bonuses are posted by settlement, not computed here.
type ReferralService struct {
	tx     store.TxRunner
	reader store.ReferralReader
	users  store.UserDirectory
	audit  *AuditService
}

func NewReferralService(tx store.TxRunner, reader store.ReferralReader, users store.UserDirectory, audit *AuditService) *ReferralService {
	return &ReferralService{tx: tx, reader: reader, users: users, audit: audit}
}

// GenerateInvitationCode returns a random 12 character hex code.
func GenerateInvitationCode() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}

// Register creates an active referral from the code owner to referredID.
func (s *ReferralService) Register(ctx context.Context, referredID int64, code string) (*domain.Referral, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidReferral
	}
	user, err := s.users.GetUser(ctx, referredID)
	if err != nil {
		return nil, err
	}
	if user.ReferredBy != nil {
		return nil, domain.ErrAlreadyReferred
	}
	referrer, err := s.users.FindUserByInvitationCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidReferral
	}
	if err != nil {
		return nil, fmt.Errorf("find referrer: %w", err)
	}
	if referrer.ID == referredID {
		return nil, domain.ErrInvalidReferral
	}

	ref := &domain.Referral{
		ReferrerID: referrer.ID,
		ReferredID: referredID,
		Bonus:      decimal.Zero,
		Status:     domain.ReferralActive,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertReferral(ctx, ref); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return domain.ErrAlreadyReferred
			}
			return fmt.Errorf("insert referral: %w", err)
		}
		return tx.SetReferredBy(ctx, referredID, referrer.ID)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, referredID, domain.AuditActionReferralRegister, domain.AuditCategoryReferral, map[string]interface{}{
		"referrer_id": referrer.ID,
	})
	return ref, nil
}

// Stats sums the bonus actually credited to referrerID.
func (s *ReferralService) Stats(ctx context.Context, referrerID int64) (domain.ReferralStats, error) {
	refs, err := s.reader.ListReferralsByReferrer(ctx, referrerID)
	if err != nil {
		return domain.ReferralStats{}, err
	}
	stats := domain.ReferralStats{TotalBonus: decimal.Zero}
	for _, r := range refs {
		stats.TotalReferrals++
		if r.Status == domain.ReferralActive {
			stats.ActiveReferrals++
		}
		stats.TotalBonus = stats.TotalBonus.Add(r.Bonus)
	}
	return stats, nil
}

func (s *ReferralService) List(ctx context.Context, referrerID int64) ([]domain.Referral, error) {
	return s.reader.ListReferralsByReferrer(ctx, referrerID)
}
