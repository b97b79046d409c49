package service

import (
	"context"
	"errors"
	"testing"

	"cashback_platform/internal/domain"
)

func TestReferralRegister(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	referrer := e.client(t, "referrer")
	newbie := e.client(t, "newbie")
	refUser, _ := e.store.GetUser(ctx, referrer)

	ref, err := e.referrals.Register(ctx, newbie, refUser.InvitationCode)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if ref.ReferrerID != referrer || ref.Status != domain.ReferralActive {
		t.Fatalf("referral = %+v", ref)
	}
	u, _ := e.store.GetUser(ctx, newbie)
	if u.ReferredBy == nil || *u.ReferredBy != referrer {
		t.Fatalf("referred_by not set: %+v", u)
	}

	if _, err := e.referrals.Register(ctx, newbie, refUser.InvitationCode); !errors.Is(err, domain.ErrAlreadyReferred) {
		t.Fatalf("second register err = %v, want ErrAlreadyReferred", err)
	}
	stats, _ := e.referrals.Stats(ctx, referrer)
	if stats.TotalReferrals != 1 || stats.ActiveReferrals != 1 || !stats.TotalBonus.IsZero() {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestReferralRegisterRejectsBadCodes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	self := e.client(t, "self")
	u, _ := e.store.GetUser(ctx, self)

	for _, code := range []string{"", "   ", "NOPE", u.InvitationCode} {
		if _, err := e.referrals.Register(ctx, self, code); !errors.Is(err, domain.ErrInvalidReferral) {
			t.Fatalf("Register(%q) err = %v, want ErrInvalidReferral", code, err)
		}
	}
	if len(e.store.Referrals()) != 0 {
		t.Fatalf("referral rows created for bad codes")
	}
}
