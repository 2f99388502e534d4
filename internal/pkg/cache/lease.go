package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Leaser hands out short-lived exclusive leases stored in redis.
type Leaser struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewLeaser(rdb redis.UniversalClient, prefix string) *Leaser {
	return &Leaser{rdb: rdb, prefix: prefix}
}

// TryAcquire takes the lease named key for ttl. acquired is false when
// someone else holds it. The returned release func is a no-op in that case.
func (l *Leaser) TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error) {
	full := l.prefix + key
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return noopRelease, false, fmt.Errorf("acquire lease %s: %w", full, err)
	}
	if !ok {
		return noopRelease, false, nil
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{full}, token).Err(); err != nil {
			return fmt.Errorf("release lease %s: %w", full, err)
		}
		return nil
	}, true, nil
}

func noopRelease(context.Context) error { return nil }
