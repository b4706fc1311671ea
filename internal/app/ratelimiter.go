/**
 * @description
 * Distributed fixed-window rate limiter for outbound reminder emails. The
 * synchronous fallback path sends inline from sweep workers, so bursts are
 * capped per invoice owner to keep the mail provider happy.
 */
package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var sendRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisSendLimiter implements per-owner send throttling on Redis.
type RedisSendLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSendLimiter creates a limiter with the given key prefix.
func NewRedisSendLimiter(client redis.UniversalClient, prefix string) *RedisSendLimiter {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "invoiceflow:send_limit"
	}
	trimmed = strings.TrimSuffix(trimmed, ":")

	return &RedisSendLimiter{client: client, prefix: trimmed}
}

// ConsumeSendQuota counts one send against the subject's window and returns
// the running count plus the retry-after hint once the limit is exceeded.
// A nil limiter or non-positive limit disables throttling.
func (r *RedisSendLimiter) ConsumeSendQuota(
	ctx context.Context,
	subject string,
	limit int,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s", r.prefix, subject)
	raw, err := sendRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}

	current, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(current), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := 0
	if int(current) > limit {
		retryAfter = int(math.Ceil(float64(ttlMs) / 1000.0))
		if retryAfter < 1 {
			retryAfter = 1
		}
	}

	return int(current), retryAfter, nil
}
