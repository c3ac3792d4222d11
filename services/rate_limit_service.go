package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiterInterface is a fixed-window counter keyed by caller.
type RateLimiterInterface interface {
	// CheckLimit records one hit and reports whether it is allowed, how many
	// hits remain in the window, and how long until the window resets.
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, retryAfter time.Duration, err error)
}

type RateLimitService struct {
	redis     redis.Cmdable
	keyPrefix string
}

func NewRateLimitService(rdb redis.Cmdable) *RateLimitService {
	return &RateLimitService{
		redis:     rdb,
		keyPrefix: "rate_limit:",
	}
}

func (s *RateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Duration, error) {
	rKey := s.keyPrefix + key

	pipe := s.redis.TxPipeline()
	incr := pipe.Incr(ctx, rKey)
	pipe.ExpireNX(ctx, rKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, err
	}

	count := incr.Val()
	if count > int64(limit) {
		ttl, err := s.redis.TTL(ctx, rKey).Result()
		if err != nil {
			return false, 0, 0, err
		}
		if ttl <= 0 {
			ttl = window
		}
		return false, 0, ttl, nil
	}
	return true, limit - int(count), 0, nil
}
