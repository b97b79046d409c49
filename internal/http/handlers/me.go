package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Me returns the caller's profile together with the ledger account.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	u, err := h.Users.GetUser(ctx, userID)
	if err != nil {
		respondError(c, "me", err)
		return
	}
	acc, err := h.Ledger.GetBalance(ctx, userID)
	if err != nil {
		respondError(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    u,
		"account": acc,
	})
}
