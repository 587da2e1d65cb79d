package handler

import (
	"banking-services/internal/adapter/http/middleware"
	"banking-services/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up the transaction service routes.
type RouterDeps struct {
	Kernel         ports.TransactionKernel
	AccountSvc     ports.AccountService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	RateLimitRules map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	TracerProvider trace.TracerProvider          // nil = global provider
	Propagator     propagation.TextMapPropagator // nil = global propagator
	Logger         zerolog.Logger
}

// IdentityRouterDeps holds the dependencies of the identity gate server.
type IdentityRouterDeps struct {
	IdentitySvc    ports.IdentityService
	TokenSvc       ports.TokenService // nil = service tokens not required
	HealthCheckers []ports.HealthChecker
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine of the transaction service.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := newEngine("transaction-service", deps.TracerProvider, deps.Propagator, deps.Logger)

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", OpenAPISpec)
	}

	// Return a rate limiter for the group if one is configured, else noop.
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

	v1 := r.Group("/api/v1")

	transactionHandler := NewTransactionHandler(deps.Kernel)
	v1.POST("/transactions", rl("transactions"), transactionHandler.Create)

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts", rl("accounts"))
	{
		accounts.POST("", accountHandler.Open)
		accounts.GET("", accountHandler.List)
		accounts.GET("/:account_id", accountHandler.Get)
		accounts.POST("/:account_id/close", accountHandler.Close)
		accounts.GET("/:account_id/transactions", accountHandler.ListTransactions)
		accounts.GET("/:account_id/reconciliation", accountHandler.Reconcile)
	}

	return r
}

// SetupIdentityRouter initialises the Gin engine of the identity gate server.
func SetupIdentityRouter(deps IdentityRouterDeps) *gin.Engine {
	r := newEngine("identity-gate", deps.TracerProvider, deps.Propagator, deps.Logger)

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	identityHandler := NewIdentityHandler(deps.IdentitySvc, deps.Logger)
	if deps.TokenSvc != nil {
		r.GET("/authenticate/:customer_id", middleware.ServiceAuth(deps.TokenSvc, deps.Logger), identityHandler.Authenticate)
	} else {
		r.GET("/authenticate/:customer_id", identityHandler.Authenticate)
	}

	return r
}

func newEngine(service string, tp trace.TracerProvider, propagator propagation.TextMapPropagator, log zerolog.Logger) *gin.Engine {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	r := gin.New()
	r.UseRawPath = true
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(service, tp, propagator))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	return r
}
