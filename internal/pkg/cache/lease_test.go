package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const isolatedLeaseTestRedisDB = 13

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	opts := Options()
	opts.DB = isolatedLeaseTestRedisDB
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not reachable at %s: %v", opts.Addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestLeaseIsExclusiveUntilReleased(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	l := NewLeaser(rdb, "test:lease:")
	key := "exclusive-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { rdb.Del(ctx, "test:lease:"+key) })

	release, ok, err := l.TryAcquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))

	release, ok, err = l.TryAcquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, release(ctx))
}

func TestReleaseDoesNotDropForeignLease(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	l := NewLeaser(rdb, "test:lease:")
	key := "foreign-" + time.Now().Format("150405.000000")
	full := "test:lease:" + key
	t.Cleanup(func() { rdb.Del(ctx, full) })

	release, ok, err := l.TryAcquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Lease expired and was taken by another instance.
	require.NoError(t, rdb.Set(ctx, full, "other-token", 5*time.Second).Err())
	require.NoError(t, release(ctx))

	val, err := rdb.Get(ctx, full).Result()
	require.NoError(t, err)
	assert.Equal(t, "other-token", val)
}
