package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/service"

	"github.com/shopspring/decimal"
)

type fakeDesk struct {
	pending  []domain.WithdrawalRequest
	decided  []int64
	approved []bool
	notes    []string
	err      error
}

func (f *fakeDesk) ListPending(ctx context.Context, limit int) ([]domain.WithdrawalRequest, error) {
	return f.pending, f.err
}

func (f *fakeDesk) Decide(ctx context.Context, adminID, id int64, approve bool, notes string) (*domain.WithdrawalRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.decided = append(f.decided, id)
	f.approved = append(f.approved, approve)
	f.notes = append(f.notes, notes)
	return &domain.WithdrawalRequest{ID: id, Amount: decimal.NewFromInt(100), NetAmount: decimal.NewFromInt(98)}, nil
}

type fakeTransfers struct {
	status domain.TransferStatus
}

func (f *fakeTransfers) UpdateStatus(ctx context.Context, adminID, id int64, status domain.TransferStatus) (*domain.Transfer, error) {
	f.status = status
	return &domain.Transfer{ID: id, Status: status}, nil
}

type fakeRates struct{}

func (fakeRates) Current(ctx context.Context) (domain.RateConfig, error) {
	return domain.RateConfig{
		PlatformFeeRate:    decimal.NewFromInt(5),
		ClientCashbackRate: decimal.NewFromInt(2),
		ReferralBonusRate:  decimal.NewFromInt(1),
		MinWithdrawal:      decimal.NewFromInt(10),
	}, nil
}

func TestCommandsDecisions(t *testing.T) {
	desk := &fakeDesk{}
	c := NewCommands(desk, &fakeTransfers{}, fakeRates{})
	ctx := context.Background()

	if got := c.Handle(ctx, 1, "approve", "12 paid by pix"); !strings.Contains(got, "#12 completed") {
		t.Fatalf("approve reply = %q", got)
	}
	if got := c.Handle(ctx, 1, "reject", "13 wrong account"); !strings.Contains(got, "#13 rejected") {
		t.Fatalf("reject reply = %q", got)
	}
	if len(desk.decided) != 2 || !desk.approved[0] || desk.approved[1] {
		t.Fatalf("decisions = %v %v", desk.decided, desk.approved)
	}
	if desk.notes[0] != "paid by pix" || desk.notes[1] != "wrong account" {
		t.Fatalf("notes = %q", desk.notes)
	}

	for _, args := range []string{"", "abc"} {
		if got := c.Handle(ctx, 1, "approve", args); !strings.HasPrefix(got, "❌") {
			t.Fatalf("approve %q should fail, got %q", args, got)
		}
	}
	if got := c.Handle(ctx, 1, "reject", "13"); !strings.Contains(got, "Usage") {
		t.Fatalf("reject without reason = %q", got)
	}
	if len(desk.decided) != 2 {
		t.Fatal("invalid commands must not reach the service")
	}
}

func TestCommandsReportDomainErrorKind(t *testing.T) {
	c := NewCommands(&fakeDesk{err: domain.ErrAlreadyProcessed}, &fakeTransfers{}, fakeRates{})
	got := c.Handle(context.Background(), 1, "approve", "5")
	if !strings.Contains(got, "already_processed") {
		t.Fatalf("reply = %q", got)
	}
}

func TestCommandsPendingAndRates(t *testing.T) {
	desk := &fakeDesk{pending: []domain.WithdrawalRequest{
		{ID: 3, UserID: 9, Amount: decimal.NewFromInt(50), NetAmount: decimal.NewFromInt(49), CreatedAt: time.Now()},
	}}
	c := NewCommands(desk, &fakeTransfers{}, fakeRates{})

	if got := c.Handle(context.Background(), 1, "pending", ""); !strings.Contains(got, "#3 user 9: 50.00") {
		t.Fatalf("pending reply = %q", got)
	}
	desk.pending = nil
	if got := c.Handle(context.Background(), 1, "pending", ""); !strings.Contains(got, "No pending") {
		t.Fatalf("empty pending reply = %q", got)
	}
	if got := c.Handle(context.Background(), 1, "rates", ""); !strings.Contains(got, "Platform fee: 5%") {
		t.Fatalf("rates reply = %q", got)
	}
}

func TestCommandsTransferStatus(t *testing.T) {
	tr := &fakeTransfers{}
	c := NewCommands(&fakeDesk{}, tr, fakeRates{})
	if got := c.Handle(context.Background(), 1, "transfer", "4 completed"); !strings.Contains(got, "#4 is now completed") {
		t.Fatalf("reply = %q", got)
	}
	if tr.status != domain.TransferCompleted {
		t.Fatalf("status = %q", tr.status)
	}
}

func TestFormatAlert(t *testing.T) {
	w := &domain.WithdrawalRequest{
		ID: 7, UserID: 2, MerchantID: 3,
		Amount: decimal.NewFromInt(100), FeeAmount: decimal.NewFromInt(2), NetAmount: decimal.NewFromInt(98),
		Bank: domain.BankDetails{AccountHolder: "<Ana>"},
	}
	got := FormatAlert(service.NotifyWithdrawalCreated, w)
	if !strings.Contains(got, "/approve 7") || !strings.Contains(got, "&lt;Ana&gt;") {
		t.Fatalf("alert = %q", got)
	}
	if FormatAlert(service.NotifyCashbackEarned, w) != "" {
		t.Fatal("cashback alerts are not for admins")
	}
	if FormatAlert(service.NotifyWithdrawalCreated, "bogus") != "" {
		t.Fatal("unexpected payload type should be ignored")
	}
}
