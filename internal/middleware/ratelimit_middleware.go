package middleware

import (
	"net/http"
	"strconv"

	"jyotish-chat/internal/redis"
	"jyotish-chat/internal/services"
	"jyotish-chat/internal/transport/httpdto"
	"jyotish-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageRateLimitMiddleware charges the caller's message budget. It must run
// after AuthMiddleware. Limiter outages let the request through.
func MessageRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := services.IdentityFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}
		result, err := limiter.AllowMessage(c.Request.Context(), identity.ID)
		if !admit(c, result, err, "message rate limit exceeded") {
			return
		}
		c.Next()
	}
}

// WebSocketRateLimitMiddleware limits handshakes per client IP.
func WebSocketRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowConnect(c.Request.Context(), c.ClientIP())
		if !admit(c, result, err, "connection rate limit exceeded") {
			return
		}
		c.Next()
	}
}

func admit(c *gin.Context, result *redis.RateLimitResult, err error, msg string) bool {
	if err != nil {
		if l := logger.GetGlobalLogger(); l != nil {
			l.WithContext(c.Request.Context()).Warn("rate limiter unavailable", zap.Error(err))
		}
		return true
	}
	if result.Limit > 0 {
		setRateLimitHeaders(c, result)
	}
	if !result.Allowed {
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(msg, "RATE_LIMITED"))
		c.Abort()
		return false
	}
	return true
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
