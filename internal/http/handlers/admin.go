package handlers

import (
	"net/http"

	"cashback_platform/internal/domain"

	"github.com/gin-gonic/gin"
)

// GetRates returns the active rate row, or the configured defaults.
func (h *Handler) GetRates(c *gin.Context) {
	cfg, err := h.Rates.Current(c.Request.Context())
	if err != nil {
		respondError(c, "get rates", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateRates replaces the active rates and appends a history row.
func (h *Handler) UpdateRates(c *gin.Context) {
	adminID, ok := caller(c)
	if !ok {
		return
	}
	var req domain.RateConfig
	if !bind(c, &req) {
		return
	}
	cfg, err := h.Rates.Update(c.Request.Context(), adminID, req)
	if err != nil {
		respondError(c, "update rates", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) RateHistory(c *gin.Context) {
	list, err := h.Rates.History(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, "rate history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}

func (h *Handler) PendingWithdrawals(c *gin.Context) {
	list, err := h.Withdrawals.ListPending(c.Request.Context(), queryLimit(c))
	if err != nil {
		respondError(c, "pending withdrawals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

type decisionRequest struct {
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}

// DecideWithdrawal completes ("approve") or rejects ("reject") a pending payout.
func (h *Handler) DecideWithdrawal(c *gin.Context) {
	adminID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req decisionRequest
	if !bind(c, &req) {
		return
	}
	var approve bool
	switch req.Action {
	case "approve":
		approve = true
	case "reject":
	default:
		badRequest(c, "action must be approve or reject")
		return
	}
	w, err := h.Withdrawals.Decide(c.Request.Context(), adminID, id, approve, req.Notes)
	if err != nil {
		respondError(c, "decide withdrawal", err)
		return
	}
	c.JSON(http.StatusOK, w)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// UpdateTransactionStatus cancels or refunds a sale, reversing its credits.
func (h *Handler) UpdateTransactionStatus(c *gin.Context) {
	adminID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.Settlement.UpdateStatus(c.Request.Context(), adminID, id, domain.TransactionStatus(req.Status), req.Notes)
	if err != nil {
		respondError(c, "update transaction status", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// UpdateTransferStatus reviews a merchant transfer request.
func (h *Handler) UpdateTransferStatus(c *gin.Context) {
	adminID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.Transfers.UpdateStatus(c.Request.Context(), adminID, id, domain.TransferStatus(req.Status))
	if err != nil {
		respondError(c, "update transfer status", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// AuditLogs lists audit entries, optionally filtered by ?category=.
func (h *Handler) AuditLogs(c *gin.Context) {
	logs, err := h.Audit.GetLogsByCategory(c.Request.Context(), c.Query("category"), queryLimit(c))
	if err != nil {
		respondError(c, "audit logs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
