package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetBalance returns the caller's ledger account.
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	acc, err := h.Ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "get balance", err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// BalanceHistory returns the caller's journal, newest first.
func (h *Handler) BalanceHistory(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	entries, err := h.Ledger.History(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, "balance history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
