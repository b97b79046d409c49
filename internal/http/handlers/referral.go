package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type registerReferralRequest struct {
	InvitationCode string `json:"invitation_code" binding:"required"`
}

// RegisterReferral links the caller to the owner of an invitation code.
func (h *Handler) RegisterReferral(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req registerReferralRequest
	if !bind(c, &req) {
		return
	}
	ref, err := h.Referrals.Register(c.Request.Context(), userID, strings.TrimSpace(req.InvitationCode))
	if err != nil {
		respondError(c, "register referral", err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

// ReferralStats returns the caller's referral count and the bonus paid so far.
func (h *Handler) ReferralStats(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	stats, err := h.Referrals.Stats(ctx, userID)
	if err != nil {
		respondError(c, "referral stats", err)
		return
	}
	referrals, err := h.Referrals.List(ctx, userID)
	if err != nil {
		respondError(c, "referral stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":     stats,
		"referrals": referrals,
	})
}
