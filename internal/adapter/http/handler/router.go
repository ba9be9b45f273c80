package handler

import (
	"wallet-service/internal/adapter/http/middleware"
	"wallet-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	BalanceSvc     ports.BalanceService
	ContactSvc     ports.ContactService
	Currency       string
	TokenSvc       ports.TokenService   // nil = bearer auth disabled
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	AuditSvc       ports.AuditService   // nil = audit logging disabled
	HealthCheckers []ports.HealthChecker
	ServiceName    string // non-empty = otel request tracing
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.ServiceName != "" {
		r.Use(otelgin.Middleware(deps.ServiceName))
	}

	// Health check (deep: verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.Logger, deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
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

	api := r.Group("/api")
	if deps.TokenSvc != nil {
		api.Use(middleware.JWTAuth(deps.TokenSvc, deps.Logger))
	}
	// Registered after auth so the actor is known once the handler returns.
	if deps.AuditSvc != nil {
		api.Use(middleware.AuditLog(deps.AuditSvc))
	}

	h := NewWalletHandler(deps.WalletSvc, deps.BalanceSvc, deps.ContactSvc, deps.Currency)
	wallets := api.Group("/wallets")
	{
		wallets.POST("/create", rl("wallets_create"), h.Create)
		wallets.GET("/user/:userId", rl("wallets_read"), h.GetByUser)
		wallets.GET("/search/:query", rl("wallets_search"), h.Search)
		wallets.GET("/:walletId", rl("wallets_read"), h.Get)
		wallets.POST("/update", rl("wallets_write"), h.Update)
		wallets.PATCH("/updateStatus", rl("wallets_write"), h.UpdateStatus)
		wallets.PATCH("/add-contact", rl("wallets_write"), h.AddContact)
		wallets.PATCH("/remove-contact", rl("wallets_write"), h.RemoveContact)
	}

	return r
}
