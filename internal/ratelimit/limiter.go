// Package ratelimit enforces per-merchant request budgets against Redis.
// Limiting is fixed-window: one counter per merchant per window, INCR'd on
// each request. Counters live in Redis so the budget holds across gateway
// instances.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"shipping-gateway/internal/auth"
	"shipping-gateway/internal/common/logging"
)

const keyPrefix = "ratelimit:"

// Config controls the limiter. A zero Limit disables limiting.
type Config struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig allows 120 requests per merchant per minute.
func DefaultConfig() Config {
	return Config{Limit: 120, Window: time.Minute}
}

// Limiter counts requests per merchant in Redis.
type Limiter struct {
	client *redis.Client
	config Config
	logger logging.Logger
}

// New creates a limiter. A nil client disables limiting.
func New(client *redis.Client, config Config, logger logging.Logger) *Limiter {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return &Limiter{client: client, config: config, logger: logger}
}

// Allow increments the merchant's counter for the current window and reports
// whether the request fits the budget. remaining is how many requests are
// left after this one.
func (l *Limiter) Allow(ctx context.Context, merchantID string) (allowed bool, remaining int, err error) {
	if l.client == nil || l.config.Limit <= 0 {
		return true, l.config.Limit, nil
	}

	window := time.Now().Unix() / int64(l.config.Window.Seconds())
	key := fmt.Sprintf("%s%s:%d", keyPrefix, merchantID, window)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.config.Window)
	}

	remaining = l.config.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return int(count) <= l.config.Limit, remaining, nil
}

// Middleware enforces the budget on merchant-scoped routes. It runs after
// auth, keyed by the merchant from the request context. Redis being down
// fails open: request flow matters more than budget accounting.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		merchantID := auth.MerchantID(r.Context())
		if merchantID == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, err := l.Allow(r.Context(), merchantID)
		if err != nil {
			l.logger.Warn("Rate limit check failed, allowing request", logging.Err(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.config.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.config.Window.Seconds())))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
