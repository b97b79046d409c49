package handlers

import (
	"net/http"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/logger"

	"github.com/gin-gonic/gin"
)

var statusByKind = map[string]int{
	"invalid_amount":         http.StatusBadRequest,
	"insufficient_balance":   http.StatusUnprocessableEntity,
	"merchant_not_found":     http.StatusNotFound,
	"merchant_not_approved":  http.StatusUnprocessableEntity,
	"recipient_not_found":    http.StatusNotFound,
	"self_transfer":          http.StatusBadRequest,
	"below_minimum":          http.StatusBadRequest,
	"already_processed":      http.StatusConflict,
	"not_found":              http.StatusNotFound,
	"invalid_rate":           http.StatusBadRequest,
	"invalid_status":         http.StatusBadRequest,
	"invalid_referral":       http.StatusBadRequest,
	"already_referred":       http.StatusConflict,
	"invalid_payment_method": http.StatusBadRequest,
}

// respondError maps domain errors to 4xx. Anything else is logged and
// reported as a generic 500.
func respondError(c *gin.Context, op string, err error) {
	kind := domain.KindOf(err)
	if status, ok := statusByKind[kind]; ok {
		c.AbortWithStatusJSON(status, gin.H{"error": kind, "message": domain.MessageOf(err)})
		return
	}
	logger.WithContext(c.Request.Context()).Error("request failed", "op", op, "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "internal server error"})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": msg})
}
