package persistence

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestRedisSequence_ConcurrentUnique(t *testing.T) {
	srv, client := redisClient(t)
	ctx := context.Background()
	seq := NewRedisSequence(client)
	const dayPrefix = "TKT-20251112"

	const workers = 32
	var (
		mu   sync.Mutex
		seen = map[int]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := seq.NextSequence(ctx, dayPrefix)
			assert.NoError(t, err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers)
	for i := 1; i <= workers; i++ {
		assert.True(t, seen[i], "missing sequence %d", i)
	}
	assert.Equal(t, sequenceTTL, srv.TTL(sequenceKeyPrefix+dayPrefix))
}

func TestRedisSequence_Seed(t *testing.T) {
	srv, client := redisClient(t)
	ctx := context.Background()
	seq := NewRedisSequence(client)
	const dayPrefix = "TKT-20251112"

	require.NoError(t, seq.Seed(ctx, dayPrefix, 10))
	n, err := seq.NextSequence(ctx, dayPrefix)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	require.NoError(t, seq.Seed(ctx, dayPrefix, 3), "a lower floor never moves the counter back")
	n, err = seq.NextSequence(ctx, dayPrefix)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	srv.FlushAll()
	require.NoError(t, seq.Seed(ctx, dayPrefix, 40))
	n, err = seq.NextSequence(ctx, dayPrefix)
	require.NoError(t, err)
	assert.Equal(t, 41, n)
	assert.Equal(t, sequenceTTL, srv.TTL(sequenceKeyPrefix+dayPrefix))
}
