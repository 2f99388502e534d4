package counter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CoachHub/internal/pkg/cache"
)

const isolatedCounterTestRedisDB = 12

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	opts := cache.Options()
	opts.DB = isolatedCounterTestRedisDB
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

func TestSweepCountersAccumulate(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf("test:sweep:counters:%d", time.Now().UnixNano())
	t.Cleanup(func() { rdb.Del(ctx, key) })

	at := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	c := NewSweepCounters(rdb, key)
	c.now = func() time.Time { return at }

	require.NoError(t, c.RecordCheck(ctx, 2, 1))
	require.NoError(t, c.RecordCheck(ctx, 0, 3))
	require.NoError(t, c.RecordNotify(ctx, 5))

	got, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		FieldCheckRuns:      2,
		FieldRenewed:        2,
		FieldExpired:        4,
		FieldNotifyRuns:     1,
		FieldNotified:       5,
		FieldLastCheckUnix:  at.Unix(),
		FieldLastNotifyUnix: at.Unix(),
	}, got)
}

func TestSnapshotOfEmptyHash(t *testing.T) {
	rdb := testRedis(t)
	c := NewSweepCounters(rdb, fmt.Sprintf("test:sweep:empty:%d", time.Now().UnixNano()))

	got, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
