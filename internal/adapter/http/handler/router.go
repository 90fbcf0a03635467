package handler

import (
	"net/http"

	"point-ledger/internal/adapter/http/middleware"
	redisStore "point-ledger/internal/adapter/storage/redis"
	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Coordinator    ports.Coordinator
	TokenSvc       ports.PaymentTokenService
	ReportingSvc   ports.ReportingService
	ProductSvc     ports.ProductService
	AuditRecorder  ports.AuditRecorder
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Gatherer       prometheus.Gatherer // nil = /metrics disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}
	role := middleware.RequireRole

	v1 := r.Group("/api/v1", middleware.ActorContext())
	if deps.AuditRecorder != nil {
		v1.Use(middleware.AuditDenied(deps.AuditRecorder, deps.Logger))
	}

	walletHandler := NewWalletHandler(deps.Coordinator, deps.ReportingSvc)
	ledgerHandler := NewLedgerHandler(deps.Coordinator, deps.ReportingSvc, deps.AuditRecorder)
	tokenHandler := NewTokenHandler(deps.TokenSvc, deps.Coordinator, deps.ReportingSvc)
	productHandler := NewProductHandler(deps.ProductSvc, deps.Coordinator, deps.ReportingSvc)

	wallets := v1.Group("/wallets")
	{
		wallets.POST("", role(domain.RoleAdmin), rl("ledger_write"), walletHandler.Create)
		wallets.GET("/me", rl("read"), walletHandler.GetMine)
		wallets.GET("/me/ledger", rl("read"), walletHandler.ListMyLedger)
		wallets.GET("/leaderboard", rl("read"), walletHandler.Leaderboard)
		wallets.GET("/:id/verify", role(domain.RoleAdmin), rl("read"), walletHandler.Verify)
	}

	v1.POST("/transfers", role(domain.RoleStudent, domain.RoleLecturer), rl("ledger_write"), ledgerHandler.Transfer)
	v1.POST("/rewards", role(domain.RoleLecturer, domain.RoleAdmin), rl("ledger_write"), ledgerHandler.Reward)
	v1.POST("/purchases", role(domain.RoleStudent), rl("ledger_write"), productHandler.Purchase)

	admin := v1.Group("/admin", role(domain.RoleAdmin))
	{
		admin.GET("/wallets", rl("read"), walletHandler.List)
		admin.GET("/wallets/:id", rl("read"), walletHandler.Get)
		admin.GET("/wallets/:id/ledger", rl("read"), walletHandler.ListLedger)
		admin.POST("/wallets/adjust", rl("ledger_write"), ledgerHandler.Adjust)
		admin.POST("/wallets/reset", rl("ledger_write"), ledgerHandler.Reset)
		admin.GET("/stats", rl("read"), walletHandler.Stats)
		admin.GET("/ledger", rl("read"), ledgerHandler.ListLedger)
		admin.GET("/audit", rl("read"), ledgerHandler.ListAudit)
	}

	tokens := v1.Group("/payment-tokens")
	{
		tokens.POST("", role(domain.RoleStudent), rl("tokens"), tokenHandler.Issue)
		tokens.GET("/:token", rl("read"), tokenHandler.Status)
	}

	merchant := v1.Group("/merchant", role(domain.RoleMerchant))
	{
		merchant.POST("/redeem", rl("merchant"), tokenHandler.Redeem)
		merchant.GET("/stats", rl("merchant"), tokenHandler.MerchantStats)
	}

	products := v1.Group("/products")
	{
		products.GET("", rl("read"), productHandler.List)
		products.GET("/:id", rl("read"), productHandler.Get)
		products.POST("", role(domain.RoleAdmin), rl("ledger_write"), productHandler.Create)
		products.PUT("/:id", role(domain.RoleAdmin), rl("ledger_write"), productHandler.Update)
		products.DELETE("/:id", role(domain.RoleAdmin), rl("ledger_write"), productHandler.Delete)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error_code": "REQ_404", "message": "Route not found"})
	})

	return r
}
