/**
 * @description
 * Redis-backed implementation of the Limiter interface for deployments that
 * run more than one API instance. A Lua script makes the increment and the
 * window expiry a single atomic step on the Redis side, so replicas share one
 * consistent budget per (subject, class).
 *
 * @dependencies
 * - context, fmt, time: Standard Go libraries.
 * - github.com/redis/go-redis/v9: The Redis client library.
 */

package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
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

// RedisLimiter implements distributed fixed-window rate limiting using Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLimiter creates a limiter on the given client. Keys are namespaced
// under the prefix so one Redis can serve several environments.
func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "be:rate_limit"
	}
	trimmed = strings.TrimSuffix(trimmed, ":")

	return &RedisLimiter{client: client, prefix: trimmed}
}

// Allow consumes one unit of the subject's budget for the class.
func (l *RedisLimiter) Allow(ctx context.Context, class Class, subject string) (Result, error) {
	policy := PolicyFor(class)
	key := l.key(class, subject)

	raw, err := fixedWindowScript.Run(ctx, l.client, []string{key}, policy.Window.Milliseconds()).Result()
	if err != nil {
		return Result{}, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return Result{}, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return Result{}, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = policy.Window.Milliseconds()
	}

	remaining := policy.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   int(count) <= policy.Max,
		Limit:     policy.Max,
		Remaining: remaining,
		Reset:     time.Now().Add(time.Duration(ttlMs) * time.Millisecond),
	}, nil
}

// Snapshot reports the subject's budget without consuming it.
func (l *RedisLimiter) Snapshot(ctx context.Context, class Class, subject string) (Result, error) {
	policy := PolicyFor(class)
	key := l.key(class, subject)

	count, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return Result{
			Allowed:   true,
			Limit:     policy.Max,
			Remaining: policy.Max,
			Reset:     time.Now().Add(policy.Window),
		}, nil
	}
	if err != nil {
		return Result{}, err
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, err
	}
	if ttl < 0 {
		ttl = policy.Window
	}

	remaining := policy.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   remaining > 0,
		Limit:     policy.Max,
		Remaining: remaining,
		Reset:     time.Now().Add(ttl),
	}, nil
}

func (l *RedisLimiter) key(class Class, subject string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, class, subject)
}
