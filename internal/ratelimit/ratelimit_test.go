package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLockerExclusive(t *testing.T) {
	ctx := context.Background()
	locker := NewRedisLocker(newRedis(t))

	token, ok, err := locker.TryLock(ctx, "tenant:cus_1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "tenant:cus_1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "tenant:cus_1", "someone-else"))
	_, ok, _ = locker.TryLock(ctx, "tenant:cus_1", time.Minute)
	assert.False(t, ok, "foreign token must not release the lease")

	require.NoError(t, locker.Release(ctx, "tenant:cus_1", token))
	_, ok, err = locker.TryLock(ctx, "tenant:cus_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLockerExpires(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	locker := NewLocalLocker(clk.Now)

	_, ok, err := locker.TryLock(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = locker.TryLock(ctx, "k", 10*time.Second)
	assert.False(t, ok)

	clk.Advance(11 * time.Second)
	token, ok, _ := locker.TryLock(ctx, "k", 10*time.Second)
	assert.True(t, ok)

	require.NoError(t, locker.Release(ctx, "k", token))
	_, ok, _ = locker.TryLock(ctx, "k", 10*time.Second)
	assert.True(t, ok)

	_, _, err = locker.TryLock(ctx, "", time.Second)
	assert.Error(t, err)
}

func TestTokenBucketExhausts(t *testing.T) {
	ctx := context.Background()
	bucket := NewTokenBucket(newRedis(t))

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "auth:sign_in:1.2.3.4", 0.01, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}
	res, err := bucket.Allow(ctx, "auth:sign_in:1.2.3.4", 0.01, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
}

func TestAuthLimiterDisabledAllows(t *testing.T) {
	var limiter *AuthLimiter
	res, err := limiter.Allow(context.Background(), "sign_in", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	assert.Nil(t, NewAuthLimiter(config.Config{}, nil))
}
