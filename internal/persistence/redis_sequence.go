package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sequenceKeyPrefix = "ticket_seq:"
	sequenceTTL       = 48 * time.Hour
)

// raiseScript sets KEYS[1] to ARGV[1] unless it already holds a larger value.
var raiseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if current < floor then
  redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
  return floor
end
return current
`)

// RedisSequence allocates per-day ticket sequences with INCR. Numbers handed
// out for a failed insert are skipped, never reused.
type RedisSequence struct {
	client redis.Cmdable
}

// NewRedisSequence builds a sequence source on client.
func NewRedisSequence(client redis.Cmdable) *RedisSequence {
	return &RedisSequence{client: client}
}

// NextSequence increments the counter for dayPrefix. The key expires two days
// after its last use.
func (s *RedisSequence) NextSequence(ctx context.Context, dayPrefix string) (int, error) {
	key := sequenceKeyPrefix + dayPrefix
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, sequenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return int(incr.Val()), nil
}

// Seed raises the counter for dayPrefix to at least floor, so the next INCR
// hands out floor+1. A counter already past floor is left alone.
func (s *RedisSequence) Seed(ctx context.Context, dayPrefix string, floor int) error {
	key := sequenceKeyPrefix + dayPrefix
	if err := raiseScript.Run(ctx, s.client, []string{key}, floor, int(sequenceTTL.Seconds())).Err(); err != nil {
		return fmt.Errorf("seed %s: %w", key, err)
	}
	return nil
}
