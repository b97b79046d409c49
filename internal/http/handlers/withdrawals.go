package handlers

import (
	"net/http"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/service"

	"github.com/gin-gonic/gin"
)

type withdrawalRequest struct {
	MerchantID  int64              `json:"merchant_id" binding:"required"`
	Amount      jsonAmount         `json:"amount"`
	BankDetails domain.BankDetails `json:"bank_details"`
}

// CreateWithdrawal holds the amount and files a pending payout.
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req withdrawalRequest
	if !bind(c, &req) {
		return
	}
	amount, err := req.Amount.Decimal()
	if err != nil {
		respondError(c, "request withdrawal", err)
		return
	}
	w, err := h.Withdrawals.Request(c.Request.Context(), service.WithdrawalInput{
		UserID:     userID,
		MerchantID: req.MerchantID,
		Amount:     amount,
		Bank:       req.BankDetails,
	})
	if err != nil {
		respondError(c, "request withdrawal", err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *Handler) ListWithdrawals(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.Withdrawals.ListByUser(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, "list withdrawals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

func (h *Handler) GetWithdrawal(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	w, err := h.Withdrawals.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, "get withdrawal", err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// CancelWithdrawal releases the hold of the caller's own pending request.
func (h *Handler) CancelWithdrawal(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	w, err := h.Withdrawals.Cancel(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, "cancel withdrawal", err)
		return
	}
	c.JSON(http.StatusOK, w)
}
