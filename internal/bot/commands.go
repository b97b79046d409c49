package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/service"
)

type withdrawalDesk interface {
	ListPending(ctx context.Context, limit int) ([]domain.WithdrawalRequest, error)
	Decide(ctx context.Context, adminID, id int64, approve bool, notes string) (*domain.WithdrawalRequest, error)
}

type transferDesk interface {
	UpdateStatus(ctx context.Context, adminID, id int64, status domain.TransferStatus) (*domain.Transfer, error)
}

type rateReader interface {
	Current(ctx context.Context) (domain.RateConfig, error)
}

// Commands implements the admin command set independent of the Telegram transport.
type Commands struct {
	withdrawals withdrawalDesk
	transfers   transferDesk
	rates       rateReader
}

func NewCommands(withdrawals withdrawalDesk, transfers transferDesk, rates rateReader) *Commands {
	return &Commands{withdrawals: withdrawals, transfers: transfers, rates: rates}
}

// Handle runs one command on behalf of adminID and returns the HTML reply.
func (c *Commands) Handle(ctx context.Context, adminID int64, command, args string) string {
	switch command {
	case "start", "help":
		return helpMessage()
	case "pending":
		return c.handlePending(ctx, args)
	case "approve":
		return c.handleDecision(ctx, adminID, args, true)
	case "reject":
		return c.handleDecision(ctx, adminID, args, false)
	case "transfer":
		return c.handleTransfer(ctx, adminID, args)
	case "rates":
		return c.handleRates(ctx)
	default:
		return "❌ Unknown command. Use /help for the list."
	}
}

func helpMessage() string {
	return `<b>🤖 Admin commands</b>

<b>💸 Withdrawals:</b>
/pending [limit] - Pending withdrawals
/approve &lt;id&gt; [note] - Mark as paid
/reject &lt;id&gt; &lt;reason&gt; - Reject and release funds

<b>🔁 Transfers:</b>
/transfer &lt;id&gt; &lt;status&gt; - Move a merchant transfer (approved, processing, completed, rejected)

<b>📊 Rates:</b>
/rates - Active platform rates`
}

func (c *Commands) handlePending(ctx context.Context, args string) string {
	limit := 10
	if args != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	list, err := c.withdrawals.ListPending(ctx, limit)
	if err != nil {
		return fmt.Sprintf("❌ Error: %s", describe(err))
	}
	if len(list) == 0 {
		return "✅ No pending withdrawals"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>💸 Pending withdrawals (%d)</b>\n\n", len(list)))
	for _, w := range list {
		sb.WriteString(fmt.Sprintf("#%d user %d: %s (net %s) %s\n",
			w.ID, w.UserID, w.Amount.StringFixed(2), w.NetAmount.StringFixed(2), w.CreatedAt.Format("02.01.2006 15:04")))
	}
	return sb.String()
}

func (c *Commands) handleDecision(ctx context.Context, adminID int64, args string, approve bool) string {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if parts[0] == "" || (!approve && len(parts) < 2) {
		if approve {
			return "❌ Usage: /approve <id> [note]"
		}
		return "❌ Usage: /reject <id> <reason>"
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "❌ Invalid withdrawal ID"
	}
	notes := ""
	if len(parts) == 2 {
		notes = strings.TrimSpace(parts[1])
	}

	w, err := c.withdrawals.Decide(ctx, adminID, id, approve, notes)
	if err != nil {
		return fmt.Sprintf("❌ Error: %s", describe(err))
	}
	if approve {
		return fmt.Sprintf("✅ Withdrawal #%d completed, pay out %s", w.ID, w.NetAmount.StringFixed(2))
	}
	return fmt.Sprintf("❌ Withdrawal #%d rejected. %s returned to the balance.", w.ID, w.Amount.StringFixed(2))
}

func (c *Commands) handleTransfer(ctx context.Context, adminID int64, args string) string {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "❌ Usage: /transfer <id> <status>"
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "❌ Invalid transfer ID"
	}

	t, err := c.transfers.UpdateStatus(ctx, adminID, id, domain.TransferStatus(parts[1]))
	if err != nil {
		return fmt.Sprintf("❌ Error: %s", describe(err))
	}
	return fmt.Sprintf("✅ Transfer #%d is now %s", t.ID, t.Status)
}

func (c *Commands) handleRates(ctx context.Context) string {
	r, err := c.rates.Current(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Error: %s", describe(err))
	}
	return fmt.Sprintf(`<b>📊 Active rates</b>

• Platform fee: %s%%
• Client cashback: %s%%
• Referral bonus: %s%%
• Withdrawal fee: %s%%
• Min withdrawal: %s`,
		r.PlatformFeeRate.String(),
		r.ClientCashbackRate.String(),
		r.ReferralBonusRate.String(),
		r.WithdrawalFeeRate.String(),
		r.MinWithdrawal.StringFixed(2),
	)
}

// FormatAlert renders an admin notification, or "" for kinds the bot ignores.
func FormatAlert(kind string, payload any) string {
	switch kind {
	case service.NotifyWithdrawalCreated:
		w, ok := payload.(*domain.WithdrawalRequest)
		if !ok {
			return ""
		}
		holder := w.Bank.AccountHolder
		if holder == "" {
			holder = "-"
		}
		return fmt.Sprintf(`🔔 <b>New withdrawal request</b>

👤 User: %d (merchant %d)
💰 Amount: %s, fee %s, net %s
🏦 Holder: %s

ID: #%d

/approve %d - mark as paid
/reject %d reason - reject`,
			w.UserID, w.MerchantID,
			w.Amount.StringFixed(2), w.FeeAmount.StringFixed(2), w.NetAmount.StringFixed(2),
			html.EscapeString(holder),
			w.ID, w.ID, w.ID)
	case service.NotifyTransferRequested:
		t, ok := payload.(*domain.Transfer)
		if !ok {
			return ""
		}
		return fmt.Sprintf(`🔔 <b>Merchant transfer awaiting review</b>

From %d to %d: %s

/transfer %d completed - release funds
/transfer %d rejected - reject`,
			t.FromUserID, t.ToUserID, t.Amount.StringFixed(2), t.ID, t.ID)
	}
	return ""
}

func describe(err error) string {
	if kind := domain.KindOf(err); kind != "" {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "internal error"
}
