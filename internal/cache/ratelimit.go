package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/remoteprint/remoteprint/internal/model"
)

// Bucket key namespaces and idle expiry.
const (
	keyBucketPrefix = "rl:key:"
	ipBucketPrefix  = "rl:ip:"

	keyBucketIdle = 2 * time.Minute
	ipBucketIdle  = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// takeTokenScript refills the bucket for the elapsed milliseconds and takes
// one token when available. Returns {allowed, retry_after_ms, tokens_left}.
var takeTokenScript = redis.NewScript(`
local per_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local idle_ms = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 't', 'at')
local tokens = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now_ms

if now_ms > at then
  tokens = math.min(capacity, tokens + (now_ms - at) * per_ms)
end

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait_ms = math.ceil((1 - tokens) / per_ms)
end

redis.call('HSET', KEYS[1], 't', tokens, 'at', now_ms)
redis.call('PEXPIRE', KEYS[1], idle_ms)

return {allowed, wait_ms, math.floor(tokens)}
`)

// bucket describes one token bucket: refill rate and capacity.
type bucket struct {
	key       string
	perSecond float64
	capacity  int
	idle      time.Duration
}

// CheckAPIRateLimit takes a token from the API key's bucket, sized by the
// owning account's plan. Enterprise keys are never limited.
func (c *Cache) CheckAPIRateLimit(ctx context.Context, keyID string, plan model.PlanID) (*RateLimitResult, error) {
	limits := model.RateLimitFor(plan)
	if limits.RequestsPerMinute == 0 {
		return unlimitedResult(limits.Burst), nil
	}

	return c.take(ctx, bucket{
		key:       keyBucketPrefix + keyID,
		perSecond: float64(limits.RequestsPerMinute) / 60,
		capacity:  limits.Burst,
		idle:      keyBucketIdle,
	})
}

// CheckIPRateLimit takes a token from the client IP's bucket. The IP is
// stored hashed.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	return c.take(ctx, bucket{
		key:       ipBucketPrefix + hashIP(ip),
		perSecond: float64(ratePerSecond),
		capacity:  burst,
		idle:      ipBucketIdle,
	})
}

func (c *Cache) take(ctx context.Context, b bucket) (*RateLimitResult, error) {
	if b.perSecond <= 0 || b.capacity <= 0 {
		return nil, fmt.Errorf("rate limit %s: non-positive rate or burst", b.key)
	}

	now := time.Now()
	perMs := b.perSecond / 1000

	reply, err := takeTokenScript.Run(ctx, c.client,
		[]string{b.key},
		perMs, b.capacity, now.UnixMilli(), b.idle.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", b.key, err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", b.key, reply)
	}

	// Time until the bucket is full again.
	missing := float64(b.capacity) - float64(reply[2])
	refill := time.Duration(math.Ceil(missing/perMs)) * time.Millisecond

	return &RateLimitResult{
		Allowed:    reply[0] == 1,
		Remaining:  reply[2],
		ResetAt:    now.Add(refill),
		RetryAfter: time.Duration(reply[1]) * time.Millisecond,
	}, nil
}

func unlimitedResult(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now().Add(time.Minute),
	}
}

// hashIP returns the first 8 bytes of the SHA-256 of ip, hex encoded.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
