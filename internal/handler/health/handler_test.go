package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dbUp := true
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "medvault_probe_total", Help: "probe"}))

	r := gin.New()
	NewHandler(reg, map[string]Pinger{
		"database": PingFunc(func(ctx context.Context) error {
			if !dbUp {
				return errors.New("down")
			}
			return nil
		}),
	}).RegisterRoutes(r)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, get("/health/live").Code)
	assert.Equal(t, http.StatusOK, get("/health/ready").Code)

	dbUp = false
	w := get("/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database unavailable")
	assert.Equal(t, http.StatusOK, get("/health/live").Code)

	w = get("/health/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "medvault_probe_total")
}
