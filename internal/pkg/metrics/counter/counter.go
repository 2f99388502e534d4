package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SweepCountersKey is the redis hash holding sweep totals.
const SweepCountersKey = "sweep:counters"

// Fields of the sweep counter hash.
const (
	FieldCheckRuns      = "check_runs"
	FieldRenewed        = "renewed"
	FieldExpired        = "expired"
	FieldNotifyRuns     = "notify_runs"
	FieldNotified       = "notified"
	FieldLastCheckUnix  = "last_check_unix"
	FieldLastNotifyUnix = "last_notify_unix"
)

// SweepCounters accumulates sweep outcomes in a redis hash so every instance
// contributes to the same totals.
type SweepCounters struct {
	rdb redis.UniversalClient
	key string
	now func() time.Time
}

func NewSweepCounters(rdb redis.UniversalClient, key string) *SweepCounters {
	if key == "" {
		key = SweepCountersKey
	}
	return &SweepCounters{rdb: rdb, key: key, now: time.Now}
}

// RecordCheck adds one expiry/renewal run.
func (s *SweepCounters) RecordCheck(ctx context.Context, renewed, expired int) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, s.key, FieldCheckRuns, 1)
		p.HIncrBy(ctx, s.key, FieldRenewed, int64(renewed))
		p.HIncrBy(ctx, s.key, FieldExpired, int64(expired))
		p.HSet(ctx, s.key, FieldLastCheckUnix, s.now().Unix())
		return nil
	})
	return err
}

// RecordNotify adds one notification run.
func (s *SweepCounters) RecordNotify(ctx context.Context, sent int) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, s.key, FieldNotifyRuns, 1)
		p.HIncrBy(ctx, s.key, FieldNotified, int64(sent))
		p.HSet(ctx, s.key, FieldLastNotifyUnix, s.now().Unix())
		return nil
	})
	return err
}

// Snapshot returns all counters. Unparseable fields are skipped.
func (s *SweepCounters) Snapshot(ctx context.Context) (map[string]int64, error) {
	data, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
