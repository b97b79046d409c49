package service

import (
	"context"
	"sync"
	"testing"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/repository/memstore"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultRates() domain.RateConfig {
	return domain.RateConfig{
		PlatformFeeRate:        dec("5"),
		ClientCashbackRate:     dec("2"),
		ReferralBonusRate:      dec("1"),
		MerchantCommissionRate: decimal.Zero,
		WithdrawalFeeRate:      decimal.Zero,
		MinWithdrawal:          dec("10"),
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	user   []string
	admins []string
}

func (n *recordingNotifier) Notify(ctx context.Context, userID int64, kind string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.user = append(n.user, kind)
	return nil
}

func (n *recordingNotifier) NotifyAdmins(ctx context.Context, kind string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admins = append(n.admins, kind)
	return nil
}

func (n *recordingNotifier) userKinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.user...)
}

func (n *recordingNotifier) adminKinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.admins...)
}

type env struct {
	store      *memstore.Store
	notifier   *recordingNotifier
	audit      *AuditService
	rates      *RateService
	ledger     *LedgerService
	settlement *SettlementService
	transfers  *TransferService
	withdraw   *WithdrawalService
	referrals  *ReferralService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memstore.New()
	n := &recordingNotifier{}
	audit := NewAuditService(st)
	rates := NewRateService(st, st, nil, defaultRates(), audit)
	ledger := NewLedgerService(st, st, audit)
	return &env{
		store:      st,
		notifier:   n,
		audit:      audit,
		rates:      rates,
		ledger:     ledger,
		settlement: NewSettlementService(st, st, st, st, rates, ledger, n, audit),
		transfers:  NewTransferService(st, st, st, ledger, n, audit),
		withdraw:   NewWithdrawalService(st, st, st, rates, ledger, n, audit),
		referrals:  NewReferralService(st, st, st, audit),
	}
}

func (e *env) client(t *testing.T, name string) int64 {
	t.Helper()
	return e.store.AddUser(domain.User{Type: domain.UserClient, Name: name, InvitationCode: GenerateInvitationCode()})
}

// merchant creates an owner user and an approved store; it returns both ids.
func (e *env) merchant(t *testing.T, approved bool) (ownerID, merchantID int64) {
	t.Helper()
	ownerID = e.store.AddUser(domain.User{Type: domain.UserMerchant, Name: "owner"})
	merchantID = e.store.AddMerchant(domain.Merchant{OwnerUserID: ownerID, StoreName: "shop", Approved: approved})
	return ownerID, merchantID
}

func (e *env) balance(t *testing.T, userID int64) domain.LedgerAccount {
	t.Helper()
	acc, err := e.ledger.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance(%d): %v", userID, err)
	}
	if !acc.Consistent() {
		t.Fatalf("account %d inconsistent: %+v", userID, acc)
	}
	return acc
}

func assertAmount(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", what, got.StringFixed(2), want)
	}
}
