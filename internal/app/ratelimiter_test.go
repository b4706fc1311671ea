package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) *RedisSendLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return NewRedisSendLimiter(rdb, "test:send_limit")
}

func TestConsumeSendQuota_AllowsUnderLimit(t *testing.T) {
	t.Parallel()

	limiter := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		count, retryAfter, err := limiter.ConsumeSendQuota(ctx, "user-1", 3, time.Minute)
		if err != nil {
			t.Fatalf("ConsumeSendQuota() error: %v", err)
		}
		if count != i+1 {
			t.Fatalf("expected count %d, got %d", i+1, count)
		}
		if retryAfter != 0 {
			t.Fatalf("expected no retry-after under the limit, got %d", retryAfter)
		}
	}
}

func TestConsumeSendQuota_ThrottlesOverLimit(t *testing.T) {
	t.Parallel()

	limiter := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := limiter.ConsumeSendQuota(ctx, "user-1", 2, time.Minute); err != nil {
			t.Fatalf("ConsumeSendQuota() error: %v", err)
		}
	}

	count, retryAfter, err := limiter.ConsumeSendQuota(ctx, "user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("ConsumeSendQuota() error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry-after over the limit, got %d", retryAfter)
	}
}

func TestConsumeSendQuota_SubjectsAreIsolated(t *testing.T) {
	t.Parallel()

	limiter := newTestLimiter(t)
	ctx := context.Background()

	if _, _, err := limiter.ConsumeSendQuota(ctx, "user-1", 1, time.Minute); err != nil {
		t.Fatalf("ConsumeSendQuota() error: %v", err)
	}

	count, retryAfter, err := limiter.ConsumeSendQuota(ctx, "user-2", 1, time.Minute)
	if err != nil {
		t.Fatalf("ConsumeSendQuota() error: %v", err)
	}
	if count != 1 || retryAfter != 0 {
		t.Fatalf("expected isolated window for second subject, got count=%d retryAfter=%d", count, retryAfter)
	}
}

func TestConsumeSendQuota_NilLimiterDisablesThrottling(t *testing.T) {
	t.Parallel()

	var limiter *RedisSendLimiter
	count, retryAfter, err := limiter.ConsumeSendQuota(context.Background(), "user-1", 1, time.Minute)
	if err != nil || count != 0 || retryAfter != 0 {
		t.Fatalf("expected nil limiter to no-op, got count=%d retryAfter=%d err=%v", count, retryAfter, err)
	}
}
