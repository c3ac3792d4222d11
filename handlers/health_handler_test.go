package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/resaletix/resaletix-backend/types"
	"github.com/stretchr/testify/assert"
)

type stubHealth struct {
	status types.HealthStatus
}

func (s stubHealth) CheckHealth(context.Context) types.HealthCheck {
	return types.HealthCheck{
		Status: s.status,
		Components: map[string]types.HealthComponent{
			types.ComponentDatabase: {Status: s.status},
		},
		Version: "test",
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		status     types.HealthStatus
		path       string
		wantCode   int
		wantInBody string
	}{
		{"live", types.HealthStatusDown, "/health/live", http.StatusOK, ""},
		{"ready up", types.HealthStatusUp, "/health/ready", http.StatusOK, `"status":"UP"`},
		{"ready degraded", types.HealthStatusDegraded, "/health/ready", http.StatusOK, `"status":"DEGRADED"`},
		{"ready down", types.HealthStatusDown, "/health/ready", http.StatusServiceUnavailable, `"status":"DOWN"`},
		{"detailed down", types.HealthStatusDown, "/health", http.StatusOK, `"database"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(stubHealth{status: tt.status})
			r := gin.New()
			r.GET("/health", h.DetailedHealth)
			r.GET("/health/live", h.LivenessCheck)
			r.GET("/health/ready", h.ReadinessCheck)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantInBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantInBody)
			}
		})
	}
}
