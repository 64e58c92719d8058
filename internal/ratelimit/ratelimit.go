// Package ratelimit applies per-key request limits backed by Redis, so a
// limit holds across every API instance.
package ratelimit

import (
	"context"

	"shoppersprint-alerts/internal/cache"
	"shoppersprint-alerts/internal/logger"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
)

var limiter *redis_rate.Limiter

// Init wires the limiter to the shared Redis client. Call after
// cache.InitRedis.
func Init() {
	limiter = redis_rate.NewLimiter(cache.RedisClient)
}

// Allow reports whether one more request is permitted for key at the given
// per-minute rate. Redis failures fail open; throttling must never take
// the API down with it.
func Allow(ctx context.Context, key string, perMinute int) bool {
	if limiter == nil {
		return true
	}

	res, err := limiter.Allow(ctx, key, redis_rate.PerMinute(perMinute))
	if err != nil {
		logger.Log.Warn("Rate limiter unavailable, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}

	return res.Allowed > 0
}
