package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitUserPrefix is the Redis key prefix for per-user windows.
	rateLimitUserPrefix = "ratelimit:user:"
	// rateLimitIPPrefix is the Redis key prefix for IP rate limits.
	rateLimitIPPrefix = "ratelimit:ip:"
	// rateLimitIPTTL is the TTL for IP rate limit keys.
	rateLimitIPTTL = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed     bool
	Count       int64
	Remaining   int64
	WindowStart time.Time
	ResetAt     time.Time
	RetryAfter  time.Duration
}

// RetryAfterMinutes is the wait to report to a throttled user:
// ceil(window - elapsed) in whole minutes, never below 1.
func (r *RateLimitResult) RetryAfterMinutes() int {
	minutes := int(math.Ceil(r.RetryAfter.Minutes()))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// fixedWindowScript implements the per-user fixed window.
// The window hash holds request_count and window_start (unix ms).
// Returns {allowed, count, window_start}.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'request_count', 'window_start')
	local count = tonumber(data[1])
	local start = tonumber(data[2])

	if count == nil or start == nil or now - start >= window then
		redis.call('HSET', key, 'request_count', 1, 'window_start', now)
		redis.call('PEXPIRE', key, ttl)
		return {1, 1, now}
	end

	if count < limit then
		count = redis.call('HINCRBY', key, 'request_count', 1)
		return {1, count, start}
	end

	return {0, count, start}
`)

// CheckUserRateLimit applies the fixed window for a Telegram identifier and
// records the request when it is allowed. Unlike the IP limiter, errors are
// returned rather than failing open.
func (c *Cache) CheckUserRateLimit(ctx context.Context, identifier int64, window time.Duration, limit int) (*RateLimitResult, error) {
	key := rateLimitUserPrefix + strconv.FormatInt(identifier, 10)
	now := c.now()

	result, err := fixedWindowScript.Run(ctx, c.client,
		[]string{key},
		now.UnixMilli(), window.Milliseconds(), limit, (2 * window).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to check user rate limit: %w", err)
	}

	count := result[1]
	windowStart := time.UnixMilli(result[2])
	resetAt := windowStart.Add(window)

	res := &RateLimitResult{
		Allowed:     result[0] == 1,
		Count:       count,
		Remaining:   max(int64(limit)-count, 0),
		WindowStart: windowStart,
		ResetAt:     resetAt,
	}
	if !res.Allowed {
		res.RetryAfter = resetAt.Sub(now)
	}

	return res, nil
}

// tokenBucketScript is a Lua script implementing the token bucket algorithm.
// It's atomic and handles token refill and consumption in a single operation.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in seconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckIPRateLimit checks and updates the rate limit for an IP address
// calling the public read API. IP is hashed to avoid storing raw addresses.
// Redis errors fail open.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	key := rateLimitIPPrefix + hashIP(ip)
	now := c.now()

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		ratePerSecond, burst, now.Unix(), int(rateLimitIPTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(burst),
			ResetAt:   now.Add(time.Second),
		}, nil
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		ResetAt:    now.Add(time.Duration(float64(time.Second) / float64(ratePerSecond))),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}, nil
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
