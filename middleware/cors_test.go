package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/resaletix/resaletix-backend/config"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(&config.ServerConfig{AllowedOrigins: origins}))
	r.GET("/v1/listings", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	return r
}

func TestCORSMiddleware(t *testing.T) {
	r := corsRouter([]string{"http://localhost:3000", "*.resaletix.sg"})

	testCases := []struct {
		name           string
		origin         string
		method         string
		expectedStatus int
		expectedOrigin string
	}{
		{"exact origin", "http://localhost:3000", http.MethodGet, http.StatusOK, "http://localhost:3000"},
		{"wildcard subdomain", "https://app.resaletix.sg", http.MethodGet, http.StatusOK, "https://app.resaletix.sg"},
		{"preflight", "http://localhost:3000", http.MethodOptions, http.StatusNoContent, "http://localhost:3000"},
		{"disallowed origin", "http://malicious.example", http.MethodGet, http.StatusForbidden, ""},
		{"no origin header", "", http.MethodGet, http.StatusOK, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/v1/listings", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.Equal(t, tc.expectedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSMiddleware_AllowAll(t *testing.T) {
	r := corsRouter([]string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/v1/listings", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://resaletix.sg", "*.resaletix.sg"}
	assert.True(t, originAllowed(allowed, "https://resaletix.sg"))
	assert.True(t, originAllowed(allowed, "https://admin.resaletix.sg"))
	assert.False(t, originAllowed(allowed, "https://resaletix.sg.evil.example"))
	assert.False(t, originAllowed(allowed, "https://notresaletix.com"))
}
