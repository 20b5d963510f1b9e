package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivms/internal/handler"
	"ivms/internal/router"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func ok(context.Context) error { return nil }

func init() {
	gin.SetMode(gin.TestMode)
}

func readyz(t *testing.T, h *handler.HealthHandler) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/readyz", http.NoBody)

	h.Readiness(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := handler.NewHealthHandler(pingFunc(ok), nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/healthz", http.NoBody)

	h.Liveness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_Readiness_AllChecksPass(t *testing.T) {
	h := handler.NewHealthHandler(pingFunc(ok), nil, handler.Check{Name: "ml_service", Run: ok})

	code, body := readyz(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "ok", checks["ml_service"])
}

func TestHealthHandler_Readiness_DatabaseDown(t *testing.T) {
	h := handler.NewHealthHandler(pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}), nil)

	code, body := readyz(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])
}

func TestHealthHandler_Readiness_OptionalCheckDegrades(t *testing.T) {
	h := handler.NewHealthHandler(pingFunc(ok), nil,
		handler.Check{Name: "redis", Run: ok},
		handler.Check{Name: "ml_service", Run: func(context.Context) error { return errors.New("503 from /health") }},
	)

	code, body := readyz(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["redis"])
	assert.Equal(t, "503 from /health", checks["ml_service"])
}

func TestRouter_ServesHealthRoutesWithRequestID(t *testing.T) {
	r := router.Setup(handler.NewHealthHandler(pingFunc(ok), nil), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/files", http.NoBody)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
