// Package rate implements a fixed-window request limiter on Redis
// counters, used to throttle the public auth endpoints per client.
package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/casecurate/caseauth"
)

// Config holds limiter tuning parameters.
type Config struct {
	// Max is the number of requests allowed per window and key.
	Max int
	// Window is the fixed window duration.
	Window time.Duration
	// Prefix namespaces the Redis keys; defaults to "caseauth:rl".
	Prefix string
}

// DefaultConfig allows 30 requests per minute per key.
func DefaultConfig() Config {
	return Config{Max: 30, Window: time.Minute, Prefix: "caseauth:rl"}
}

// Limiter implements caseauth.RateLimiter with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "caseauth:rl"
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// Consume counts one request against the key's window budget and returns
// [caseauth.ErrRateLimited] once the budget is exhausted.
func (l *Limiter) Consume(ctx context.Context, clientKey string) error {
	key := l.key(clientKey)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", caseauth.ErrUpstream, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", caseauth.ErrUpstream, err)
		}
	}

	if count > int64(l.config.Max) {
		return caseauth.ErrRateLimited
	}
	return nil
}

// Reset clears the key's counter, ending its current window early.
func (l *Limiter) Reset(ctx context.Context, clientKey string) error {
	if err := l.redis.Del(ctx, l.key(clientKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", caseauth.ErrUpstream, err)
	}
	return nil
}

func (l *Limiter) key(clientKey string) string {
	return l.config.Prefix + ":" + clientKey
}
