package ratelimit_test

import (
	"context"
	"testing"

	"github.com/brightmoja/memberpay/internal/config"
	"github.com/brightmoja/memberpay/internal/ratelimit"
	"go.uber.org/zap"
)

func newLocalLimiter(t *testing.T, cfg config.RateLimitConfig) *ratelimit.Limiter {
	t.Helper()
	return ratelimit.NewLimiter(config.Config{RateLimit: cfg}, zap.NewNop())
}

func TestLocalLimiterEnforcesBurst(t *testing.T) {
	l := newLocalLimiter(t, config.RateLimitConfig{InitiateRate: 0.001, InitiateBurst: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.AllowInitiate(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("expected request %d within burst to pass", i)
		}
	}

	res, err := l.AllowInitiate(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow over burst: %v", err)
	}
	if res.Allowed {
		t.Fatal("expected request over burst to be denied")
	}
	if res.RetryAfter <= 0 {
		t.Fatal("expected a retry-after hint on denial")
	}

	// Other clients keep their own bucket.
	other, err := l.AllowInitiate(ctx, "10.0.0.2")
	if err != nil {
		t.Fatalf("allow other: %v", err)
	}
	if !other.Allowed {
		t.Fatal("expected an unrelated client to pass")
	}
}

func TestLimiterDisabledWhenRateUnset(t *testing.T) {
	l := newLocalLimiter(t, config.RateLimitConfig{})

	res, err := l.AllowWebhook(context.Background(), "gateway")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !res.Allowed {
		t.Fatal("expected unset limits to allow everything")
	}
}
