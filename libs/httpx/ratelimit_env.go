package httpx

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/redis/go-redis/v9"
)

// RateLimit is the limiter selected from the environment.
type RateLimit struct {
	Middleware Middleware
	// Ready is nil for the in-memory limiter.
	Ready func(context.Context) error
	Close func() error
}

// RateLimitFromEnv uses Redis when REDIS_ADDR is set and an in-memory
// limiter otherwise. RATE_LIMIT_PER_MINUTE applies to both.
func RateLimitFromEnv(logger *slog.Logger) RateLimit {
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)

	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		rl := NewRateLimiter(limitPerMinute, time.Minute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
		return RateLimit{Middleware: rl.Middleware(), Close: func() error { return nil }}
	}

	redisDB := 0
	if config.String("REDIS_DB", "") != "" {
		redisDB = config.Int("REDIS_DB", 0)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	rl := NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
	logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	return RateLimit{
		Middleware: rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)),
		Ready:      rl.ReadyCheck,
		Close:      rdb.Close,
	}
}
