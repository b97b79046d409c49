package handlers

import (
	"errors"
	"net/http"
	"strings"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/fees"
	"cashback_platform/internal/service"

	"github.com/gin-gonic/gin"
)

type settleRequest struct {
	ClientID       int64      `json:"client_id" binding:"required"`
	MerchantID     int64      `json:"merchant_id" binding:"required"`
	Amount         jsonAmount `json:"amount"`
	PaymentMethod  string     `json:"payment_method"`
	IdempotencyKey string     `json:"idempotency_key"`
	Notes          string     `json:"notes"`
}

// Settle records a sale. Merchants may only settle for stores they own.
// The Idempotency-Key header is used when the body carries no key.
func (h *Handler) Settle(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req settleRequest
	if !bind(c, &req) {
		return
	}
	amount, err := req.Amount.Decimal()
	if err != nil {
		respondError(c, "settle", err)
		return
	}
	ctx := c.Request.Context()

	if !isAdmin(c) {
		m, err := h.Merchants.GetMerchant(ctx, req.MerchantID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				err = domain.ErrMerchantNotFound
			}
			respondError(c, "settle", err)
			return
		}
		if m.OwnerUserID != userID {
			respondError(c, "settle", domain.ErrMerchantNotFound)
			return
		}
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}
	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}

	res, err := h.Settlement.Settle(ctx, service.SettleInput{
		ClientID:       req.ClientID,
		MerchantID:     req.MerchantID,
		Amount:         amount,
		PaymentMethod:  method,
		IdempotencyKey: key,
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(c, "settle", err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// ListTransactions returns sales where the caller is the client or the store owner.
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.Settlement.ListByUser(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, "list transactions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list})
}

// GetTransaction returns one sale visible to the caller.
func (h *Handler) GetTransaction(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := h.Settlement.Get(ctx, id)
	if err != nil {
		respondError(c, "get transaction", err)
		return
	}
	if !isAdmin(c) && t.UserID != userID {
		m, err := h.Merchants.GetMerchant(ctx, t.MerchantID)
		if err != nil || m.OwnerUserID != userID {
			respondError(c, "get transaction", domain.ErrNotFound)
			return
		}
	}
	c.JSON(http.StatusOK, t)
}

// QuoteFees previews the split of ?amount= under the current rates.
func (h *Handler) QuoteFees(c *gin.Context) {
	amount, err := fees.ParseAmount(c.Query("amount"))
	if err != nil {
		respondError(c, "quote", err)
		return
	}
	b, err := h.Settlement.Quote(c.Request.Context(), amount)
	if err != nil {
		respondError(c, "quote", err)
		return
	}
	c.JSON(http.StatusOK, b)
}
