package http

import (
	"time"

	"cashback_platform/internal/http/handlers"
	"cashback_platform/internal/http/middleware"
	"cashback_platform/internal/service"
	"cashback_platform/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteConfig carries what RegisterRoutes needs besides the handlers.
type RouteConfig struct {
	Hub            *ws.Hub
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, cfg RouteConfig) {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 120
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}

	r.Use(middleware.RequestLogger())

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Notifications
	if cfg.Hub != nil {
		r.GET("/ws", ws.HandleWS(cfg.Hub, cfg.AllowedOrigins))
	}

	// Auth is the only unauthenticated API route
	if h.Auth != nil {
		r.POST("/api/v1/auth/telegram", middleware.RateLimit(cfg.RateLimit, cfg.RateWindow), h.TelegramAuth)
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWT(), middleware.RateLimit(cfg.RateLimit, cfg.RateWindow))
	registerAPIRoutes(v1, h)
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler) {
	merchantOrAdmin := middleware.RequireRole(service.RoleMerchant, service.RoleAdmin)

	api.GET("/me", h.Me)

	// Ledger
	api.GET("/balance", h.GetBalance)
	api.GET("/balance/history", h.BalanceHistory)

	// Settlement
	api.POST("/transactions", merchantOrAdmin, h.Settle)
	api.GET("/transactions", h.ListTransactions)
	api.GET("/transactions/:id", h.GetTransaction)
	api.GET("/fees/quote", h.QuoteFees)

	// Transfers
	api.POST("/transfers", h.CreateTransfer)
	api.POST("/transfers/requests", merchantOrAdmin, h.RequestTransfer)
	api.GET("/transfers", h.ListTransfers)

	// Withdrawals
	api.POST("/withdrawals", merchantOrAdmin, h.CreateWithdrawal)
	api.GET("/withdrawals", h.ListWithdrawals)
	api.GET("/withdrawals/:id", h.GetWithdrawal)
	api.POST("/withdrawals/:id/cancel", h.CancelWithdrawal)

	// Referrals
	referral := api.Group("/referrals")
	{
		referral.POST("/register", h.RegisterReferral)
		referral.GET("/stats", h.ReferralStats)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RequireRole(service.RoleAdmin))
	{
		admin.GET("/rates", h.GetRates)
		admin.PUT("/rates", h.UpdateRates)
		admin.GET("/rates/history", h.RateHistory)
		admin.GET("/withdrawals/pending", h.PendingWithdrawals)
		admin.POST("/withdrawals/:id/decision", h.DecideWithdrawal)
		admin.PATCH("/transactions/:id/status", h.UpdateTransactionStatus)
		admin.PATCH("/transfers/:id/status", h.UpdateTransferStatus)
		admin.GET("/audit", h.AuditLogs)
	}
}
