package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"cashback_platform/internal/http/middleware"
	"cashback_platform/internal/service"
	"cashback_platform/internal/store"

	"github.com/gin-gonic/gin"
)

// Handler serves the /api/v1 surface. Every money operation goes through a service.
type Handler struct {
	Auth        *service.AuthService
	Ledger      *service.LedgerService
	Settlement  *service.SettlementService
	Transfers   *service.TransferService
	Withdrawals *service.WithdrawalService
	Referrals   *service.ReferralService
	Rates       *service.RateService
	Audit       *service.AuditService
	Users       store.UserDirectory
	Merchants   store.MerchantDirectory
}

// getUserID reads the caller id set by middleware.JWT
func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// caller aborts with 401 when the request carries no user.
func caller(c *gin.Context) (int64, bool) {
	id, ok := getUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "unauthorized"})
	}
	return id, ok
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(middleware.CtxRole) == service.RoleAdmin
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// bind decodes the JSON body and answers 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var msg string
		var numErr *strconv.NumError
		switch {
		case errors.As(err, &numErr):
			msg = "invalid number"
		default:
			msg = "invalid request body"
		}
		badRequest(c, msg)
		return false
	}
	return true
}
