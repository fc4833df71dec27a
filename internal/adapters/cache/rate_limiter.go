package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimiter is a fixed-window counter backed by Redis. The first hit in a
// window creates the counter with the window as its TTL; the counter simply
// expires when the window ends.
type RateLimiter struct {
	client *redis.Client
	logger zerolog.Logger
}

type RateLimiterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(params RateLimiterParams) *RateLimiter {
	return &RateLimiter{
		client: params.RedisClient,
		logger: params.Logger.With().Str("component", "rate_limiter").Logger(),
	}
}

// Allow increments the counter for key and reports whether the caller is
// still within limit for the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	counterKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := r.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, counterKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate counter expiry: %w", err)
		}
	}

	if count > int64(limit) {
		r.logger.Debug().Str("key", key).Int64("count", count).Int("limit", limit).Msg("Rate limit exceeded")
		return false, nil
	}
	return true, nil
}
