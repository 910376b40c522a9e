package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a sliding-window counter over a Redis sorted set. Each
// request adds a member scored by its timestamp; members older than the
// window are trimmed before counting.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewRateLimiter(client *redis.Client, limitPerMinute int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  client,
		limit:  limitPerMinute,
		window: time.Minute,
		logger: logger,
	}
}

// Allow reports whether the caller identified by key is under the limit.
// Redis being down must not take order placement down with it, so any Redis
// error fails open.
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.redis == nil {
		return true
	}

	now := time.Now()
	windowStart := now.Add(-l.window)

	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.WarnContext(ctx, "Rate limiter unavailable, allowing request",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return true
	}

	return count.Val() < int64(l.limit)
}
