package integration

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/repository"
	"cashback_platform/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(migDir, name))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", name, err)
		}
	}
}

type services struct {
	store      *repository.Store
	rates      *service.RateService
	ledger     *service.LedgerService
	settlement *service.SettlementService
	transfers  *service.TransferService
	withdraw   *service.WithdrawalService
	referrals  *service.ReferralService
	audit      *service.AuditService
}

// setup connects to DATABASE_URL or skips the test.
func setup(t *testing.T, notifier service.Notifier) *services {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)
	applyMigrations(t, pool)

	if notifier == nil {
		notifier = service.LogNotifier{}
	}
	st := repository.NewStore(pool)
	audit := service.NewAuditService(st)
	rates := service.NewRateService(st, st, nil, domain.RateConfig{
		PlatformFeeRate:    decimal.NewFromInt(5),
		ClientCashbackRate: decimal.NewFromInt(2),
		ReferralBonusRate:  decimal.NewFromInt(1),
		MinWithdrawal:      decimal.NewFromInt(10),
	}, audit)
	ledger := service.NewLedgerService(st, st, audit)
	return &services{
		store:      st,
		rates:      rates,
		ledger:     ledger,
		settlement: service.NewSettlementService(st, st, st, st, rates, ledger, notifier, audit),
		transfers:  service.NewTransferService(st, st, st, ledger, notifier, audit),
		withdraw:   service.NewWithdrawalService(st, st, st, rates, ledger, notifier, audit),
		referrals:  service.NewReferralService(st, st, st, audit),
		audit:      audit,
	}
}

// user creates a user with a unique email.
func (s *services) user(t *testing.T, typ domain.UserType) *domain.User {
	t.Helper()
	u := &domain.User{
		Type:           typ,
		Name:           string(typ),
		Email:          uuid.NewString() + "@example.com",
		InvitationCode: service.GenerateInvitationCode(),
	}
	if err := s.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (s *services) merchant(t *testing.T) (*domain.User, *domain.Merchant) {
	t.Helper()
	owner := s.user(t, domain.UserMerchant)
	m := &domain.Merchant{OwnerUserID: owner.ID, StoreName: "store", Approved: true}
	if err := s.store.CreateMerchant(context.Background(), m); err != nil {
		t.Fatalf("create merchant: %v", err)
	}
	return owner, m
}
