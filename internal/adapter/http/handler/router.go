package handler

import (
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	WithdrawalSvc  ports.WithdrawalService
	SettlementSvc  ports.SettlementService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	RateLimitRules map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := deps.RateLimitRules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	walletHandler := NewWalletHandler(deps.LedgerSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)
	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	adminHandler := NewAdminWalletHandler(deps.LedgerSvc)

	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	wallets := v1.Group("/wallets/me", rl(middleware.GroupReads))
	{
		wallets.GET("", walletHandler.GetMine)
		wallets.GET("/transactions", walletHandler.ListMyTransactions)
	}

	withdrawals := v1.Group("/withdrawals")
	{
		withdrawals.POST("", rl(middleware.GroupWithdrawals), withdrawalHandler.Create)
		withdrawals.GET("", rl(middleware.GroupReads), withdrawalHandler.List)
		withdrawals.GET("/:id", rl(middleware.GroupReads), withdrawalHandler.Get)
	}

	settlements := v1.Group("/settlements", middleware.RequireAdmin())
	{
		settlements.POST("", rl(middleware.GroupSettlements), settlementHandler.Settle)
		settlements.GET("/:order_id", rl(middleware.GroupReads), settlementHandler.Get)
	}

	admin := v1.Group("/admin", middleware.RequireAdmin(), rl(middleware.GroupAdmin))
	{
		admin.POST("/withdrawals/:id/approve", withdrawalHandler.Approve)
		admin.POST("/withdrawals/:id/reject", withdrawalHandler.Reject)
		admin.POST("/withdrawals/:id/complete", withdrawalHandler.Complete)

		admin.GET("/wallets/:merchant_id", adminHandler.GetWallet)
		admin.GET("/wallets/:merchant_id/transactions", adminHandler.ListTransactions)
		admin.GET("/wallets/:merchant_id/reconcile", adminHandler.Reconcile)
		admin.POST("/wallets/:merchant_id/freeze", adminHandler.Freeze)
		admin.POST("/wallets/:merchant_id/unfreeze", adminHandler.Unfreeze)
		admin.POST("/wallets/:merchant_id/adjustments", adminHandler.Adjust)

		admin.GET("/platform/wallet", adminHandler.GetPlatformWallet)
		admin.GET("/platform/transactions", adminHandler.ListPlatformTransactions)
		admin.GET("/platform/reconcile", adminHandler.ReconcilePlatform)

		admin.GET("/commission-rate", settlementHandler.GetCommissionRate)
		admin.PUT("/commission-rate", settlementHandler.SetCommissionRate)
	}

	return r
}
