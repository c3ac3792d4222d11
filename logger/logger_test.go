package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	IsTest = true
}

func TestMaskSensitiveString(t *testing.T) {
	assert.Equal(t, "", MaskSensitiveString("", 2, 2))
	assert.Equal(t, "*****", MaskSensitiveString("abcde", 2, 2))
	assert.Equal(t, "sk...89", MaskSensitiveString("sk_live_0123456789", 2, 2))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "se...r@example.com", MaskEmail("seller@example.com"))
	assert.Equal(t, "", MaskEmail(""))
	assert.Equal(t, "no...il", MaskEmail("not-an-email"))
}

func TestMaskJWT(t *testing.T) {
	assert.Equal(t, "****", MaskJWT("abcd"))
	assert.Equal(t, "eyJ...xyz", MaskJWT("eyJhbGciOiJIUzI1NiJ9.payload.xyz"))
}

func TestMaskConnectionString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://app:s3cret@db:5432/resaletix", "postgres://app:***@db:5432/resaletix"},
		{"host=db user=app password=s3cret dbname=x", "host=db user=app password=*** dbname=x"},
		{"host=db password=s3cret", "host=db password=***"},
		{"redis://db:6379", "redis://db:6379"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskConnectionString(tt.in))
	}
}

func TestFilterSensitiveHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	h.Set("X-Api-Key", "k")
	h.Set("Accept", "application/json")

	out := filterSensitiveHeaders(h)
	assert.Equal(t, "[REDACTED]", out["Authorization"])
	assert.Equal(t, "[REDACTED]", out["X-Api-Key"])
	assert.Equal(t, "application/json", out["Accept"])
}

func TestLogHTTPErrorDoesNotPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/listings", nil)
	c.Set("request_id", "req-1")

	assert.NotPanics(t, func() {
		LogHTTPError(c, errors.New("boom"), http.StatusBadGateway, "upstream failed")
	})
}
