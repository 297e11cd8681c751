package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{user_id}:messages - per-window sendMessage limit
// - ratelimit:{user_id}:calls    - per-window callUser limit
// - ratelimit:{ip}:connect       - per-window websocket handshakes

type RateLimitConfig struct {
	MessageLimit  int
	MessageWindow time.Duration
	CallLimit     int
	CallWindow    time.Duration
	ConnectLimit  int
	ConnectWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: time.Minute,
		CallLimit:     10,
		CallWindow:    time.Minute,
		ConnectLimit:  20,
		ConnectWindow: time.Minute,
	}
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// RateLimiter is a fixed-window counter kept in Redis. A nil *RateLimiter
// allows everything, so callers never need to check whether limiting is on.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

var limitScript = goredis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local ttl = redis.call('TTL', KEYS[1])
	if ttl < 0 then
		ttl = window
	end

	if current >= limit then
		return {0, 0, ttl}
	end

	redis.call('INCR', KEYS[1])
	if current == 0 then
		redis.call('EXPIRE', KEYS[1], window)
	end
	return {1, limit - current - 1, ttl}
`)

func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	if r == nil {
		return allowAll(), nil
	}
	return r.checkLimit(ctx, messageKey(userID), r.config.MessageLimit, r.config.MessageWindow)
}

func (r *RateLimiter) AllowCall(ctx context.Context, userID string) (*RateLimitResult, error) {
	if r == nil {
		return allowAll(), nil
	}
	return r.checkLimit(ctx, callKey(userID), r.config.CallLimit, r.config.CallWindow)
}

func (r *RateLimiter) AllowConnect(ctx context.Context, ip string) (*RateLimitResult, error) {
	if r == nil {
		return allowAll(), nil
	}
	return r.checkLimit(ctx, fmt.Sprintf("ratelimit:%s:connect", ip), r.config.ConnectLimit, r.config.ConnectWindow)
}

// ResetUser clears the message and call counters of a user.
func (r *RateLimiter) ResetUser(ctx context.Context, userID string) error {
	if r == nil {
		return nil
	}
	return r.client.Del(ctx, messageKey(userID), callKey(userID)).Err()
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	if limit <= 0 {
		return allowAll(), nil
	}
	seconds := int(window.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, seconds).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetIn:   time.Duration(result[2]) * time.Second,
		Limit:     limit,
	}, nil
}

func messageKey(userID string) string { return fmt.Sprintf("ratelimit:%s:messages", userID) }
func callKey(userID string) string    { return fmt.Sprintf("ratelimit:%s:calls", userID) }

func allowAll() *RateLimitResult {
	return &RateLimitResult{Allowed: true, Remaining: -1}
}
