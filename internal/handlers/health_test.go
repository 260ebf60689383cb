package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePinger reports a fixed ping result.
type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

// setupHealthRouter creates a test Gin router with the health routes.
func setupHealthRouter(handler *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", handler.Health)
	router.GET("/health/ready", handler.Ready)
	router.GET("/api/v1/info", handler.Info)
	return router
}

func TestHealthHandler_Health(t *testing.T) {
	// Liveness never consults dependencies.
	handler := NewHealthHandler("test", Check{Name: "database", Pinger: fakePinger{err: errors.New("down")}})
	router := setupHealthRouter(handler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealthHandler_Ready(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name           string
		checks         []Check
		expectedStatus int
		expectedState  string
		expectedDeps   map[string]string
	}{
		{
			name: "all dependencies connected",
			checks: []Check{
				{Name: "database", Pinger: fakePinger{}},
				{Name: "cache", Pinger: fakePinger{}, Optional: true},
			},
			expectedStatus: http.StatusOK,
			expectedState:  "ready",
			expectedDeps:   map[string]string{"database": "connected", "cache": "connected"},
		},
		{
			name: "required dependency down",
			checks: []Check{
				{Name: "database", Pinger: fakePinger{err: down}},
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "not_ready",
			expectedDeps:   map[string]string{"database": "disconnected"},
		},
		{
			name: "optional dependency down",
			checks: []Check{
				{Name: "database", Pinger: fakePinger{}},
				{Name: "cache", Pinger: fakePinger{err: down}, Optional: true},
			},
			expectedStatus: http.StatusOK,
			expectedState:  "ready",
			expectedDeps:   map[string]string{"database": "connected", "cache": "disconnected"},
		},
		{
			name:           "no dependencies",
			expectedStatus: http.StatusOK,
			expectedState:  "ready",
			expectedDeps:   map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupHealthRouter(NewHealthHandler("test", tt.checks...))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp ReadyResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedState, resp.Status)
			assert.Equal(t, tt.expectedDeps, resp.Dependencies)
		})
	}
}

func TestHealthHandler_Info(t *testing.T) {
	handler := NewHealthHandler("production")
	handler.startTime = time.Now().Add(-1 * time.Hour)
	router := setupHealthRouter(handler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, APIVersion, resp.Version)
	assert.Equal(t, "production", resp.Environment)
	assert.Contains(t, resp.Uptime, "1h")
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0h 0m 0s"},
		{45 * time.Second, "0h 0m 45s"},
		{90 * time.Minute, "1h 30m 0s"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatUptime(tt.duration))
		})
	}
}
