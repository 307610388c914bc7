package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"go-shortlink/internal/ratelimit"
	"go-shortlink/internal/testutil"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisLimiter(cfg ratelimit.Config, rdb *redis.Client) *ratelimit.Limiter {
	return ratelimit.NewLimiter(cfg, ratelimit.NewRedisStore(rdb), nil, zap.NewNop())
}

func TestRedisStore_Take_TokenBucketSemantics(t *testing.T) {
	store := ratelimit.NewRedisStore(testutil.StartRedis(t))
	ctx := context.Background()
	budget := ratelimit.Budget{Limit: 3, Window: time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res, err := store.Take(ctx, "ratelimit:ip:test", budget, now)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := store.Take(ctx, "ratelimit:ip:test", budget, now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 20*time.Second, res.RetryAfter)
	assert.Equal(t, now.Add(time.Minute), res.ResetAt)

	res, err = store.Take(ctx, "ratelimit:ip:test", budget, now.Add(20*time.Second))
	require.NoError(t, err)
	assert.True(t, res.Allowed, "one token refilled after a third of the window")

	other, err := store.Take(ctx, "ratelimit:ip:other", budget, now)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLimiter_WithRedisStore_SharesBucketsAcrossInstances(t *testing.T) {
	rdb := testutil.StartRedis(t)
	cfg := ratelimit.Config{Budgets: map[ratelimit.Scope]int{ratelimit.ScopeRedirect: 2}}
	a := newRedisLimiter(cfg, rdb)
	b := newRedisLimiter(cfg, rdb)
	ctx := context.Background()

	assert.True(t, a.Consume(ctx, ratelimit.ScopeRedirect, "1.1.1.1").Allowed)
	assert.True(t, b.Consume(ctx, ratelimit.ScopeRedirect, "1.1.1.1").Allowed)
	assert.False(t, a.Consume(ctx, ratelimit.ScopeRedirect, "1.1.1.1").Allowed)
}
