package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"guess_game/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const rateWindow = time.Minute

// Limiter counts hits per key in a fixed one-minute window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter shares its counters between every instance behind the same
// Redis.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int64
}

func NewRedisLimiter(rdb *redis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: int64(perMinute)}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := fmt.Sprintf("guessgame:rl:%s:%d", key, time.Now().Unix()/int64(rateWindow.Seconds()))

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, rateWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}

// MemoryLimiter is the single-process fallback when Redis is not configured.
type MemoryLimiter struct {
	hits  *cache.Cache
	limit int
}

func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	return &MemoryLimiter{
		hits:  cache.New(rateWindow, 2*rateWindow),
		limit: perMinute,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if err := l.hits.Add(key, 1, cache.DefaultExpiration); err == nil {
		return l.limit >= 1, nil
	}
	n, err := l.hits.IncrementInt(key, 1)
	if err != nil {
		return false, err
	}
	return n <= l.limit, nil
}

// RateLimit keys on the authenticated address, or the client ip before
// login. Limiter errors let the request through.
func RateLimit(l Limiter) gin.HandlerFunc {
	log := logger.With("component", "rate_limit")

	return func(c *gin.Context) {
		key := c.ClientIP()
		if addr, ok := Address(c); ok {
			key = addr.Hex()
		}

		ok, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "RateLimited", "message": "too many requests"})
			return
		}
		c.Next()
	}
}
