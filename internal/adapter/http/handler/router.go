package handler

import (
	"net/http"
	"time"

	"payment-intent-engine/internal/adapter/http/middleware"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 64 << 10

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Engine         ports.IntentEngine
	Events         ports.IntentEventRepository // nil = audit trail endpoint disabled
	Snapshots      ports.SnapshotProvider
	Clock          ports.Clock
	AuthSvc        ports.AuthService    // nil = operator auth disabled
	TokenSvc       ports.TokenService   // required when AuthSvc is set
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	RateLimitRules map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	Stream         http.Handler // nil = websocket stream disabled
	MaxExecTimeout time.Duration
	Mode           string // gin mode; defaults to release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", metrics.Handler())

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := deps.RateLimitRules
	if rules == nil {
		rules = middleware.DefaultRateLimitRules()
	}

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok || rule.Limit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// Execution moves money, so it is the one operator-only route.
	operator := func(c *gin.Context) { c.Next() }
	if deps.AuthSvc != nil {
		operator = middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	if deps.AuthSvc != nil {
		authHandler := NewAuthHandler(deps.AuthSvc)
		v1.POST("/auth/login", rl(middleware.GroupLogin), authHandler.Login)
	}

	intentHandler := NewIntentHandler(deps.Engine, deps.Events, deps.MaxExecTimeout)
	intents := v1.Group("/intents")
	{
		intents.POST("", rl(middleware.GroupCreate), intentHandler.Create)
		intents.GET("", rl(middleware.GroupRead), intentHandler.List)
		if deps.Stream != nil {
			intents.GET("/stream", gin.WrapH(deps.Stream))
		}
		intents.GET("/:id", rl(middleware.GroupRead), intentHandler.Get)
		intents.POST("/:id/execute", operator, rl(middleware.GroupExecute), intentHandler.Execute)
		if deps.Events != nil {
			intents.GET("/:id/events", rl(middleware.GroupRead), intentHandler.Events)
		}
	}

	v1.GET("/analytics", rl(middleware.GroupRead), intentHandler.Analytics)

	marketHandler := NewMarketHandler(deps.Snapshots, deps.Clock)
	v1.GET("/market", rl(middleware.GroupRead), marketHandler.Current)

	return r
}
