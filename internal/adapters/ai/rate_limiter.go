package ai

import (
	"context"

	"golang.org/x/time/rate"

	"hermes/pkg/errors"
)

// RateLimiter defines the interface for rate limiting AI provider requests.
type RateLimiter interface {
	// Wait blocks until a request can proceed or the context is cancelled.
	Wait(ctx context.Context) error

	// Limit returns the current rate limit in requests per minute.
	Limit() float64
}

// LocalLimiter wraps a token bucket for single-instance deployments.
type LocalLimiter struct {
	limiter  *rate.Limiter
	provider ProviderName
}

// NewLocalLimiter creates an in-process rate limiter.
// reqPerMinute is the sustained rate; burst caps short spikes.
func NewLocalLimiter(provider ProviderName, reqPerMinute float64, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}
	return &LocalLimiter{
		limiter:  rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst),
		provider: provider,
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (l *LocalLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter wait cancelled for provider %s", l.provider)
	}
	return nil
}

// Limit returns the rate limit in requests per minute.
func (l *LocalLimiter) Limit() float64 {
	return float64(l.limiter.Limit()) * 60.0
}

// NoOpLimiter never blocks (for disabled rate limiting or tests).
type NoOpLimiter struct{}

// NewNoOpLimiter creates a no-op rate limiter.
func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

// Wait always returns immediately without error.
func (l *NoOpLimiter) Wait(ctx context.Context) error {
	return nil
}

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() float64 {
	return -1
}

// RateLimitConfig contains rate limit configuration for a provider.
type RateLimitConfig struct {
	ReqPerMinute float64
	Burst        int
}

// LimiterFactory creates and caches one limiter per provider so all
// clients for the same vendor share a single bucket.
type LimiterFactory struct {
	redisClient interface{} // *redis.Client; untyped to avoid importing redis here
	limiters    map[ProviderName]RateLimiter
}

// NewLimiterFactory creates a factory. A nil redisClient selects local
// in-memory limiters; a non-nil client selects distributed Redis limiters
// (required when several gateway instances share a vendor quota).
func NewLimiterFactory(redisClient interface{}) *LimiterFactory {
	return &LimiterFactory{
		redisClient: redisClient,
		limiters:    make(map[ProviderName]RateLimiter),
	}
}

// For returns the shared limiter for a provider, creating it on first use.
func (f *LimiterFactory) For(provider ProviderName, cfg RateLimitConfig) RateLimiter {
	if l, ok := f.limiters[provider]; ok {
		return l
	}

	var l RateLimiter
	switch {
	case cfg.ReqPerMinute <= 0:
		l = NewNoOpLimiter()
	case f.redisClient != nil:
		l = NewRedisRateLimiterFromClient(f.redisClient, provider, cfg.ReqPerMinute, cfg.Burst)
	default:
		l = NewLocalLimiter(provider, cfg.ReqPerMinute, cfg.Burst)
	}

	f.limiters[provider] = l
	return l
}
