package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medvault-api/internal/config"
	"github.com/jwalitptl/medvault-api/internal/middleware"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

// Handler is a feature handler that mounts its routes behind authenticate.
type Handler interface {
	RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc)
}

// HealthHandler mounts unauthenticated probes.
type HealthHandler interface {
	RegisterRoutes(r gin.IRouter)
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   HealthHandler
	handlers []Handler
}

type RouterConfig struct {
	Server    config.ServerConfig
	RateLimit config.RateLimitConfig
	CORS      config.CORSConfig
	Metrics   *metrics.Metrics
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	health HealthHandler,
	cfg RouterConfig,
	handlers ...Handler,
) *Router {
	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		health:   health,
		handlers: handlers,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.Metrics(cfg.Metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.CORS),
		middleware.SizeLimit(cfg.Server.MaxBodyBytes),
		middleware.Timeout(cfg.Server.RequestTimeout),
	)

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		})
		engine.Use(limiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.health.RegisterRoutes(api)

	authenticate := r.auth.Authenticate()
	for _, h := range r.handlers {
		h.RegisterRoutes(api, authenticate)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
