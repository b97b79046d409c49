package handlers

import (
	"errors"
	"net/http"

	"cashback_platform/internal/service"

	"github.com/gin-gonic/gin"
)

type telegramAuthRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

// TelegramAuth exchanges Mini App init data for an API token.
func (h *Handler) TelegramAuth(c *gin.Context) {
	var req telegramAuthRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Auth.TelegramLogin(c.Request.Context(), req.InitData)
	if errors.Is(err, service.ErrUnauthorized) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid init data"})
		return
	}
	if err != nil {
		respondError(c, "telegram auth", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
