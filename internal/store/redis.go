// redis.go -- go-redis client and the ephemeral state kept in Redis.
//
// Redis holds nothing durable: login attempt counters, revoked session IDs
// (until their natural expiry) and change notifications for live views.
// Losing it resets counters and forgets revocations; it never loses records.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key this service writes.
const keyPrefix = "adminity:"

// NewRedisClient parses redisURL, connects and pings before returning.
// Call once at startup; the client is shared by every Redis-backed component.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// --- Rate limiting ---

// allowScript counts one attempt and applies the lockout atomically.
// KEYS[1] attempts counter, KEYS[2] lockout flag.
// ARGV[1] max attempts, ARGV[2] window ms, ARGV[3] lockout ms.
// Returns 1 when the attempt is allowed, 0 when locked out.
var allowScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
	if tonumber(ARGV[3]) > 0 then
		redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
	end
	redis.call('DEL', KEYS[1])
	return 0
end
return 1
`)

// RedisRateLimiter enforces attempt limits with fixed windows and lockouts.
type RedisRateLimiter struct {
	rdb *redis.Client
}

// NewRedisRateLimiter wraps rdb. The client stays owned by the caller.
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb}
}

// Allow records one attempt for key under policy. Returns ErrRateLimitExceeded
// while the key is locked out or once the attempt exceeds MaxAttempts in Window.
// Any other error is a Redis failure; callers decide whether to fail open.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, policy RateLimit) error {
	if policy.MaxAttempts <= 0 || policy.Window <= 0 {
		return nil
	}
	keys := []string{keyPrefix + "rl:" + key, keyPrefix + "rl:lock:" + key}
	ok, err := allowScript.Run(ctx, l.rdb, keys,
		policy.MaxAttempts, policy.Window.Milliseconds(), policy.LockoutTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("checking rate limit: %w", err)
	}
	if ok == 0 {
		return ErrRateLimitExceeded
	}
	return nil
}

// Reset clears the counter and lockout for key. Called after a successful login.
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, keyPrefix+"rl:"+key, keyPrefix+"rl:lock:"+key).Err(); err != nil {
		return fmt.Errorf("resetting rate limit: %w", err)
	}
	return nil
}

// --- Session revocation ---

// RedisDenylist stores revoked session token IDs with a TTL equal to the
// token's remaining lifetime, so the set never outgrows the live sessions.
type RedisDenylist struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisDenylist wraps rdb. The client stays owned by the caller.
func NewRedisDenylist(rdb *redis.Client) *RedisDenylist {
	return &RedisDenylist{rdb: rdb, now: time.Now}
}

func revokedKey(tokenID string) string {
	return keyPrefix + "revoked:" + tokenID
}

// Revoke marks tokenID revoked until the given time. A token already past
// until needs no entry and is skipped.
func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.rdb.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has an unexpired revocation entry.
func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}
