package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestSettleAndReplayPostgres(t *testing.T) {
	s := setup(t, nil)
	ctx := context.Background()
	client := s.user(t, domain.UserClient)
	_, m := s.merchant(t)

	in := service.SettleInput{
		ClientID:       client.ID,
		MerchantID:     m.ID,
		Amount:         decimal.RequireFromString("150.55"),
		PaymentMethod:  domain.PaymentCard,
		IdempotencyKey: "it-" + uuid.NewString(),
	}
	first, err := s.settlement.Settle(ctx, in)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// 2% of 150.55 rounds half up to 3.01
	if !first.CashbackEarned.Equal(decimal.RequireFromString("3.01")) {
		t.Fatalf("cashback = %s", first.CashbackEarned)
	}

	again, err := s.settlement.Settle(ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Transaction.ID != first.Transaction.ID {
		t.Fatalf("replay = %+v", again)
	}

	acc, err := s.ledger.GetBalance(ctx, client.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !acc.Balance.Equal(decimal.RequireFromString("3.01")) || !acc.Consistent() {
		t.Fatalf("account = %+v", acc)
	}
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	s := setup(t, nil)
	ctx := context.Background()
	from := s.user(t, domain.UserClient)
	to := s.user(t, domain.UserClient)
	_, m := s.merchant(t)

	// 2% of 1000 gives 20.00 to spend
	if _, err := s.settlement.Settle(ctx, service.SettleInput{
		ClientID: from.ID, MerchantID: m.ID, Amount: decimal.NewFromInt(1000), PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.transfers.Transfer(ctx, service.TransferInput{
				FromUserID: from.ID,
				To:         service.Recipient{UserID: to.ID},
				Amount:     decimal.NewFromInt(3),
			})
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case errors.Is(err, domain.ErrInsufficientBalance):
			default:
				t.Errorf("transfer: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 6 {
		t.Fatalf("succeeded = %d, want 6", succeeded)
	}
	acc, err := s.ledger.GetBalance(ctx, from.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !acc.Balance.Equal(decimal.NewFromInt(2)) || !acc.Consistent() {
		t.Fatalf("sender = %+v", acc)
	}
}

func TestWithdrawalHoldAndRejectPostgres(t *testing.T) {
	s := setup(t, nil)
	ctx := context.Background()
	owner, m := s.merchant(t)
	client := s.user(t, domain.UserClient)

	// a balance payment credits the owner with merchantReceives
	if _, err := s.ledger.Credit(ctx, client.ID, decimal.NewFromInt(100), domain.ReasonAdjustment, "it-fund-"+uuid.NewString()); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := s.settlement.Settle(ctx, service.SettleInput{
		ClientID: client.ID, MerchantID: m.ID, Amount: decimal.NewFromInt(100), PaymentMethod: domain.PaymentBalance,
	}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	w, err := s.withdraw.Request(ctx, service.WithdrawalInput{
		UserID: owner.ID, MerchantID: m.ID, Amount: decimal.NewFromInt(50),
		Bank: domain.BankDetails{PixKey: "owner@pix"},
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	acc, _ := s.ledger.GetBalance(ctx, owner.ID)
	if !acc.Held.Equal(decimal.NewFromInt(50)) || !acc.Balance.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("after request = %+v", acc)
	}

	if _, err := s.withdraw.Decide(ctx, 1, w.ID, false, "bad details"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	acc, _ = s.ledger.GetBalance(ctx, owner.ID)
	if !acc.Held.IsZero() || !acc.Balance.Equal(decimal.NewFromInt(95)) || !acc.Consistent() {
		t.Fatalf("after reject = %+v", acc)
	}
	if _, err := s.withdraw.Cancel(ctx, owner.ID, w.ID); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("cancel after reject: %v", err)
	}
}

func TestSettleAndTransferToReferrerDoNotDeadlock(t *testing.T) {
	s := setup(t, nil)
	ctx := context.Background()
	// the referrer is created first so it holds the lower id
	referrer := s.user(t, domain.UserClient)
	client := s.user(t, domain.UserClient)
	_, m := s.merchant(t)
	if _, err := s.referrals.Register(ctx, client.ID, referrer.InvitationCode); err != nil {
		t.Fatalf("register referral: %v", err)
	}
	if _, err := s.ledger.Credit(ctx, client.ID, decimal.NewFromInt(1000), domain.ReasonAdjustment, "it-fund-"+uuid.NewString()); err != nil {
		t.Fatalf("fund: %v", err)
	}

	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.settlement.Settle(ctx, service.SettleInput{
				ClientID: client.ID, MerchantID: m.ID, Amount: decimal.NewFromInt(100), PaymentMethod: domain.PaymentCash,
			})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.transfers.Transfer(ctx, service.TransferInput{
				FromUserID: client.ID, To: service.Recipient{UserID: referrer.ID}, Amount: decimal.NewFromInt(1),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent settle/transfer: %v", err)
		}
	}

	// 1000 + 20*2 cashback - 20 sent
	acc, err := s.ledger.GetBalance(ctx, client.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !acc.Balance.Equal(decimal.NewFromInt(1020)) || !acc.Consistent() {
		t.Fatalf("client = %+v", acc)
	}
	// 20*1 bonus + 20 received
	ref, err := s.ledger.GetBalance(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !ref.Balance.Equal(decimal.NewFromInt(40)) || !ref.Consistent() {
		t.Fatalf("referrer = %+v", ref)
	}
}
