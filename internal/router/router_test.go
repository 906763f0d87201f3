package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/medvault-api/internal/config"
	"github.com/jwalitptl/medvault-api/internal/handler/health"
	"github.com/jwalitptl/medvault-api/internal/middleware"
	"github.com/jwalitptl/medvault-api/pkg/auth"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	r.GET("/ping", authenticate, func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func newTestRouter(rl config.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := NewRouter(
		middleware.NewAuthMiddleware(auth.NewVerifier("s", "")),
		health.NewHandler(prometheus.NewRegistry(), nil),
		RouterConfig{
			Server:    config.ServerConfig{MaxBodyBytes: 1 << 20},
			RateLimit: rl,
			Metrics:   metrics.NewNop(),
		},
		pingHandler{},
	)
	r.Setup()
	return r.Engine()
}

func TestRouter_Wiring(t *testing.T) {
	e := newTestRouter(config.RateLimitConfig{})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	e := newTestRouter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
