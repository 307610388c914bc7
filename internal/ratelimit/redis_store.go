package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills continuously and takes one token atomically.
//
// KEYS[1] bucket hash (tokens, ts)
// ARGV[1] capacity, ARGV[2] window in ms, ARGV[3] now in ms
// returns {allowed, remaining, retry_after_ms, reset_after_ms}
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
    tokens = capacity
    ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * capacity / window_ms)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(math.max(now, ts)))
redis.call('PEXPIRE', key, window_ms * 2)

local retry_after = 0
if allowed == 0 then
    retry_after = math.ceil((1 - tokens) * window_ms / capacity)
end
local reset_after = math.ceil((capacity - tokens) * window_ms / capacity)

return {allowed, math.floor(tokens), retry_after, reset_after}
`)

// RedisStore shares buckets across processes through a Lua script.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Take(ctx context.Context, key string, budget Budget, now time.Time) (Result, error) {
	vals, err := tokenBucketScript.Run(ctx, s.rdb,
		[]string{key},
		budget.Limit,
		budget.Window.Milliseconds(),
		now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("token bucket script: %w", err)
	}
	if len(vals) != 4 {
		return Result{}, fmt.Errorf("token bucket script: unexpected reply length %d", len(vals))
	}

	return Result{
		Allowed:    vals[0] == 1,
		Limit:      budget.Limit,
		Remaining:  int(vals[1]),
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
		ResetAt:    now.Add(time.Duration(vals[3]) * time.Millisecond),
	}, nil
}
