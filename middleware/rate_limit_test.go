package middleware

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
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Duration, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Duration), args.Error(3)
}

func setupRateLimitRouter(limiter *MockRateLimiter, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(string(UserIDKey), userID)
		}
		c.Next()
	})
	r.POST("/upload", UploadRateLimiter(limiter, 10, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func postUpload(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	r.ServeHTTP(w, req)
	return w
}

func TestUploadRateLimiter_Allows(t *testing.T) {
	limiter := new(MockRateLimiter)
	limiter.On("CheckLimit", mock.Anything, "upload:user:user-1", 10, time.Minute).
		Return(true, 9, time.Duration(0), nil)

	w := postUpload(setupRateLimitRouter(limiter, "user-1"))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, w.Header().Get("Retry-After"))
	limiter.AssertExpectations(t)
}

func TestUploadRateLimiter_Blocks(t *testing.T) {
	limiter := new(MockRateLimiter)
	limiter.On("CheckLimit", mock.Anything, "upload:user:user-1", 10, time.Minute).
		Return(false, 0, 30*time.Second, nil)

	w := postUpload(setupRateLimitRouter(limiter, "user-1"))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Type)
	assert.Equal(t, "retry after 30 seconds", body.Details)
}

func TestUploadRateLimiter_AnonymousKeyedByIP(t *testing.T) {
	limiter := new(MockRateLimiter)
	limiter.On("CheckLimit", mock.Anything, "upload:ip:203.0.113.9", 10, time.Minute).
		Return(true, 5, time.Duration(0), nil)

	w := postUpload(setupRateLimitRouter(limiter, ""))

	assert.Equal(t, http.StatusCreated, w.Code)
	limiter.AssertExpectations(t)
}

func TestUploadRateLimiter_FailsOpen(t *testing.T) {
	limiter := new(MockRateLimiter)
	limiter.On("CheckLimit", mock.Anything, mock.Anything, 10, time.Minute).
		Return(false, 0, time.Duration(0), errors.New("redis: connection refused"))

	w := postUpload(setupRateLimitRouter(limiter, "user-1"))

	assert.Equal(t, http.StatusCreated, w.Code)
}
