package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brightmoja/memberpay/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	keyInitiate = "memberpay:rl:initiate:%s"
	keyWebhook  = "memberpay:rl:webhook:%s"
)

// Limiter throttles the public payment endpoints per client key. It runs
// against redis when an address is configured and falls back to in-process
// buckets otherwise, so a single instance never hard-depends on redis.
type Limiter struct {
	log *zap.Logger
	cfg config.RateLimitConfig

	bucket *TokenBucket
	local  *localBuckets
}

func NewLimiter(cfg config.Config, log *zap.Logger) *Limiter {
	l := &Limiter{
		log: log.Named("ratelimit"),
		cfg: cfg.RateLimit,
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.RedisPassword,
		})
		l.bucket = NewTokenBucket(client)
		return l
	}

	l.local = newLocalBuckets()
	return l
}

func (l *Limiter) AllowInitiate(ctx context.Context, clientKey string) (Result, error) {
	return l.allow(ctx, fmt.Sprintf(keyInitiate, clientKey), l.cfg.InitiateRate, l.cfg.InitiateBurst)
}

func (l *Limiter) AllowWebhook(ctx context.Context, clientKey string) (Result, error) {
	return l.allow(ctx, fmt.Sprintf(keyWebhook, clientKey), l.cfg.WebhookRate, l.cfg.WebhookBurst)
}

func (l *Limiter) allow(ctx context.Context, key string, rt float64, burst int) (Result, error) {
	if rt <= 0 || burst <= 0 {
		return Result{Allowed: true}, nil
	}
	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, key, rt, burst)
		if err != nil {
			// Redis being down must not take the payment path with it.
			l.log.Warn("rate limit backend unavailable, allowing request",
				zap.String("key", key), zap.Error(err))
			return Result{Allowed: true}, nil
		}
		return res, nil
	}
	return l.local.allow(key, rt, burst), nil
}

// localBuckets is the single-instance fallback built on x/time/rate.
type localBuckets struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newLocalBuckets() *localBuckets {
	return &localBuckets{buckets: make(map[string]*rate.Limiter)}
}

func (b *localBuckets) allow(key string, rt float64, burst int) Result {
	b.mu.Lock()
	lim, ok := b.buckets[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rt), burst)
		b.buckets[key] = lim
	}
	b.mu.Unlock()

	if lim.Allow() {
		return Result{Allowed: true, Remaining: int(lim.Tokens())}
	}
	retryAfter := time.Duration(1.0 / rt * float64(time.Second))
	return Result{Allowed: false, RetryAfter: retryAfter}
}
