package handlers

import (
	"net/http"
	"strings"

	"cashback_platform/internal/service"

	"github.com/gin-gonic/gin"
)

// transferRequest names the recipient by id or by an email, phone or name term.
type transferRequest struct {
	ToUserID    int64      `json:"to_user_id"`
	To          string     `json:"to"`
	Amount      jsonAmount `json:"amount"`
	Description string     `json:"description"`
}

func (r transferRequest) input(from int64) (service.TransferInput, error) {
	amount, err := r.Amount.Decimal()
	if err != nil {
		return service.TransferInput{}, err
	}
	return service.TransferInput{
		FromUserID:  from,
		To:          service.Recipient{UserID: r.ToUserID, Term: strings.TrimSpace(r.To)},
		Amount:      amount,
		Description: r.Description,
	}, nil
}

// CreateTransfer moves cashback balance to another user immediately.
func (h *Handler) CreateTransfer(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req transferRequest
	if !bind(c, &req) {
		return
	}
	in, err := req.input(userID)
	if err != nil {
		respondError(c, "transfer", err)
		return
	}
	res, err := h.Transfers.Transfer(c.Request.Context(), in)
	if err != nil {
		respondError(c, "transfer", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// RequestTransfer files a merchant transfer for admin review.
func (h *Handler) RequestTransfer(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req transferRequest
	if !bind(c, &req) {
		return
	}
	in, err := req.input(userID)
	if err != nil {
		respondError(c, "transfer request", err)
		return
	}
	t, err := h.Transfers.Request(c.Request.Context(), in)
	if err != nil {
		respondError(c, "transfer request", err)
		return
	}
	c.JSON(http.StatusAccepted, t)
}

// ListTransfers returns transfers sent or received by the caller.
func (h *Handler) ListTransfers(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.Transfers.ListByUser(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, "list transfers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": list})
}
