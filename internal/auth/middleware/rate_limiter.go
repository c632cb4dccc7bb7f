package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/redis"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/validator"
)

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	// 时间窗口内允许的最大请求数
	MaxRequests int
	// 时间窗口（秒）
	WindowSeconds int
	// 限流策略：user, endpoint, ip（默认）
	Strategy string
}

// Evaler 执行 Lua 脚本，由 *redis.Client 实现
type Evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	Key(parts ...string) string
}

// RateLimiter 基于 Redis 的滑动窗口限流中间件；store 为 nil 时不限流
func RateLimiter(store Evaler, cfg RateLimiterConfig, log *logger.Logger) gin.HandlerFunc {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "ip"
	}

	return func(c *gin.Context) {
		if store == nil {
			c.Next()
			return
		}

		key := store.Key(buildRateLimitKey(c, cfg.Strategy))

		allowed, remaining, resetTime, err := checkRateLimit(c.Request.Context(), store, key, cfg)
		if err != nil {
			log.Error("rate limiter error", zap.Error(err), zap.String("key", key))
			// 限流器故障时，降级允许请求通过
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(cfg.WindowSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": fmt.Sprintf("too many requests, please try again in %d seconds", cfg.WindowSeconds),
			})
			return
		}

		c.Next()
	}
}

// buildRateLimitKey 构建限流 key
func buildRateLimitKey(c *gin.Context, strategy string) string {
	prefix := "rate_limit"
	ip := validator.NormalizeIP(c.ClientIP(), "unknown")

	switch strategy {
	case "user":
		// 基于用户 ID 限流（需要先经过认证中间件）
		if userID, exists := c.Get("user_id"); exists {
			return fmt.Sprintf("%s:user:%v", prefix, userID)
		}
		return fmt.Sprintf("%s:ip:%s", prefix, ip)

	case "endpoint":
		return fmt.Sprintf("%s:endpoint:%s:%s", prefix, c.FullPath(), ip)

	default:
		return fmt.Sprintf("%s:ip:%s", prefix, ip)
	}
}

// 滑动窗口，成员使用纳秒时间戳避免同一秒内的请求互相覆盖
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('EXPIRE', key, window)
	return {1, limit - current - 1, now + window}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')[2]
return {0, 0, tonumber(oldest) + window}
`

// checkRateLimit 使用 Redis 滑动窗口算法检查限流
func checkRateLimit(ctx context.Context, store Evaler, key string, cfg RateLimiterConfig) (allowed bool, remaining int, resetTime int64, err error) {
	now := time.Now()

	result, err := store.Eval(ctx, slidingWindowScript, []string{key},
		now.Unix(), cfg.WindowSeconds, cfg.MaxRequests, now.UnixNano())
	if err != nil {
		return false, 0, 0, err
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 3 {
		return false, 0, 0, fmt.Errorf("invalid rate limit result")
	}

	allowedInt, _ := resultSlice[0].(int64)
	remainingInt, _ := resultSlice[1].(int64)
	resetTimeInt, _ := resultSlice[2].(int64)

	return allowedInt == 1, int(remainingInt), resetTimeInt, nil
}

// WebhookRateLimiter 视频回调限流：600 次 / 1 分钟（基于 IP）
func WebhookRateLimiter(client *redis.Client, log *logger.Logger) gin.HandlerFunc {
	return RateLimiter(evalerOrNil(client), RateLimiterConfig{
		MaxRequests:   600,
		WindowSeconds: 60,
		Strategy:      "ip",
	}, log)
}

// UploadRateLimiter 上传接口限流：60 次 / 1 分钟（基于用户 ID）
func UploadRateLimiter(client *redis.Client, log *logger.Logger) gin.HandlerFunc {
	return RateLimiter(evalerOrNil(client), RateLimiterConfig{
		MaxRequests:   60,
		WindowSeconds: 60,
		Strategy:      "user",
	}, log)
}

// evalerOrNil 避免 nil *redis.Client 被包装成非 nil 接口
func evalerOrNil(client *redis.Client) Evaler {
	if client == nil {
		return nil
	}
	return client
}
