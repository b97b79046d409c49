package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"cashback_platform/internal/domain"

	"github.com/shopspring/decimal"
)

func TestGetBalanceCreatesZeroAccount(t *testing.T) {
	e := newEnv(t)
	acc := e.balance(t, 77)
	if !acc.Balance.IsZero() || !acc.TotalEarned.IsZero() || !acc.TotalSpent.IsZero() {
		t.Fatalf("new account not zero: %+v", acc)
	}
	if _, ok := e.store.Account(77); !ok {
		t.Fatalf("account was not persisted on first access")
	}
}

func TestCreditIsIdempotentByKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.client(t, "ana")

	for i := 0; i < 3; i++ {
		if _, err := e.ledger.Credit(ctx, user, dec("20.00"), domain.ReasonCashback, "cashback:1"); err != nil {
			t.Fatalf("Credit #%d: %v", i, err)
		}
	}
	acc := e.balance(t, user)
	assertAmount(t, "balance", acc.Balance, "20.00")
	assertAmount(t, "total earned", acc.TotalEarned, "20.00")

	entries, _ := e.ledger.History(ctx, user, 10)
	if len(entries) != 1 {
		t.Fatalf("journal has %d entries, want 1", len(entries))
	}
}

func TestDebitRejectsOverdraw(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.client(t, "ana")
	e.store.Fund(user, dec("50"))

	if _, err := e.ledger.Debit(ctx, user, dec("50.01"), domain.ReasonPurchase); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	acc := e.balance(t, user)
	assertAmount(t, "balance after rejected debit", acc.Balance, "50")

	acc, err := e.ledger.Debit(ctx, user, dec("50"), domain.ReasonPurchase)
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	assertAmount(t, "balance", acc.Balance, "0")
	assertAmount(t, "total spent", acc.TotalSpent, "50")
}

func TestLedgerRejectsInvalidAmount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, a := range []string{"0", "-1", "0.004"} {
		if _, err := e.ledger.Credit(ctx, 1, dec(a), domain.ReasonAdjustment, ""); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("Credit(%s) err = %v", a, err)
		}
		if _, err := e.ledger.Debit(ctx, 1, dec(a), domain.ReasonAdjustment); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("Debit(%s) err = %v", a, err)
		}
	}
}

func TestConcurrentDebitsOnlyOneSucceeds(t *testing.T) {
	e := newEnv(t)
	user := e.client(t, "ana")
	e.store.Fund(user, dec("100"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.ledger.Debit(context.Background(), user, dec("60"), domain.ReasonPurchase)
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("ok=%d insufficient=%d, want 1/1", ok, insufficient)
	}
	assertAmount(t, "final balance", e.balance(t, user).Balance, "40")
}

func TestLedgerTransfer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.client(t, "a")
	b := e.client(t, "b")
	e.store.Fund(a, dec("80"))
	e.store.Fund(b, dec("5"))

	from, to, err := e.ledger.Transfer(ctx, a, b, dec("50"))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	assertAmount(t, "from balance", from.Balance, "30")
	assertAmount(t, "to balance", to.Balance, "55")
	e.balance(t, a)
	e.balance(t, b)
}

func TestLedgerTransferInsufficientLeavesBothUnchanged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.client(t, "a")
	b := e.client(t, "b")
	e.store.Fund(a, dec("30"))
	e.store.Fund(b, dec("12.5"))

	if _, _, err := e.ledger.Transfer(ctx, a, b, dec("50")); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	assertAmount(t, "A balance", e.balance(t, a).Balance, "30")
	assertAmount(t, "B balance", e.balance(t, b).Balance, "12.5")
}

func TestLedgerTransferToSelf(t *testing.T) {
	e := newEnv(t)
	a := e.client(t, "a")
	e.store.Fund(a, dec("30"))
	if _, _, err := e.ledger.Transfer(context.Background(), a, a, dec("1")); !errors.Is(err, domain.ErrSelfTransfer) {
		t.Fatalf("err = %v, want ErrSelfTransfer", err)
	}
}

// Random mixes of operations never leave a balance negative and never break
// balance + held == earned - spent.
func TestRandomOperationsKeepInvariants(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	users := []int64{e.client(t, "a"), e.client(t, "b"), e.client(t, "c")}
	r := rand.New(rand.NewSource(7))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		seed := r.Int63()
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := rand.New(rand.NewSource(seed))
			for i := 0; i < 150; i++ {
				u := users[rr.Intn(len(users))]
				v := users[rr.Intn(len(users))]
				amount := decimal.New(rr.Int63n(5000)+1, -2)
				var err error
				switch rr.Intn(3) {
				case 0:
					_, err = e.ledger.Credit(ctx, u, amount, domain.ReasonAdjustment, "")
				case 1:
					_, err = e.ledger.Debit(ctx, u, amount, domain.ReasonPurchase)
				case 2:
					_, _, err = e.ledger.Transfer(ctx, u, v, amount)
				}
				if err != nil && !errors.Is(err, domain.ErrInsufficientBalance) && !errors.Is(err, domain.ErrSelfTransfer) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, u := range users {
		acc := e.balance(t, u)
		if acc.Balance.IsNegative() {
			t.Fatalf("user %d balance negative: %s", u, acc.Balance)
		}
	}

	// the journal replays to the same balances
	for _, u := range users {
		entries, _ := e.store.ListEntries(ctx, u, 0)
		sum := decimal.Zero
		for _, en := range entries {
			switch en.Op {
			case domain.OpCredit:
				sum = sum.Add(en.Amount)
			case domain.OpDebit:
				sum = sum.Sub(en.Amount)
			}
		}
		assertAmount(t, "journal sum", sum, e.balance(t, u).Balance.String())
	}
}
