package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hermes/pkg/errors"
)

// luaTokenBucketScript implements an atomic token bucket in Redis.
// KEYS[1] = bucket key, ARGV[1] = refill rate (tokens/sec),
// ARGV[2] = burst capacity, ARGV[3] = current time (seconds, float).
// Returns 1 if a token was acquired, 0 otherwise.
const luaTokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if tokens == nil then
    tokens = burst
    last_update = now
end

local elapsed = now - last_update
tokens = math.min(burst, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, math.ceil(burst / rate) + 60)

return allowed
`

// RedisRateLimiter is a distributed token bucket shared by all gateway
// instances hitting the same vendor quota.
type RedisRateLimiter struct {
	client      *redis.Client
	provider    ProviderName
	rate        float64 // tokens per second
	burst       int
	keyPrefix   string
	tokenScript *redis.Script
}

// NewRedisRateLimiter creates a Redis-backed rate limiter.
// reqPerMinute is the sustained rate; burst caps short spikes.
func NewRedisRateLimiter(client *redis.Client, provider ProviderName, reqPerMinute float64, burst int) *RedisRateLimiter {
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}

	return &RedisRateLimiter{
		client:      client,
		provider:    provider,
		rate:        reqPerMinute / 60.0,
		burst:       burst,
		keyPrefix:   fmt.Sprintf("rate_limit:ai:%s", provider),
		tokenScript: redis.NewScript(luaTokenBucketScript),
	}
}

// NewRedisRateLimiterFromClient creates a Redis rate limiter from an
// interface{} client so LimiterFactory does not depend on the redis
// package directly. A non-redis client falls back to a no-op limiter.
func NewRedisRateLimiterFromClient(
	clientInterface interface{},
	provider ProviderName,
	reqPerMinute float64,
	burst int,
) RateLimiter {
	client, ok := clientInterface.(*redis.Client)
	if !ok {
		return NewNoOpLimiter()
	}

	return NewRedisRateLimiter(client, provider, reqPerMinute, burst)
}

// Wait blocks until a token is available or the context is cancelled.
func (l *RedisRateLimiter) Wait(ctx context.Context) error {
	for {
		allowed, err := l.tryAcquire(ctx)
		if err != nil {
			return errors.Wrapf(err, "redis rate limiter error for provider %s", l.provider)
		}

		if allowed {
			return nil
		}

		waitTime := time.Duration(float64(time.Second) / l.rate)

		select {
		case <-ctx.Done():
			return errors.Wrapf(errors.ErrCanceled, "rate limiter wait cancelled for provider %s: %v", l.provider, ctx.Err())
		case <-time.After(waitTime):
		}
	}
}

// Limit returns the rate limit in requests per minute.
func (l *RedisRateLimiter) Limit() float64 {
	return l.rate * 60.0
}

// tryAcquire attempts to acquire a token using the Lua script.
func (l *RedisRateLimiter) tryAcquire(ctx context.Context) (bool, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	result, err := l.tokenScript.Run(
		ctx,
		l.client,
		[]string{l.keyPrefix},
		l.rate,
		l.burst,
		now,
	).Int()
	if err != nil {
		return false, errors.Wrap(err, "failed to execute token bucket script")
	}

	return result == 1, nil
}

// Reset clears the rate limiter state (useful for testing).
func (l *RedisRateLimiter) Reset(ctx context.Context) error {
	return l.client.Del(ctx, l.keyPrefix).Err()
}
