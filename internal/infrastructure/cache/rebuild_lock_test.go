package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRebuildLock(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails while held", func(t *testing.T) {
		lock := NewLocalRebuildLock()

		ok, err := lock.TryAcquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = lock.TryAcquire(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, lock.Release(ctx))

		ok, err = lock.TryAcquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, lock.Release(ctx))
	})

	t.Run("exactly one winner under contention", func(t *testing.T) {
		lock := NewLocalRebuildLock()

		const goroutines = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := lock.TryAcquire(ctx)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
		require.NoError(t, lock.Release(ctx))
	})
}

func newMiniredisLock(t *testing.T, mr *miniredis.Miniredis, ttl time.Duration) *RedisRebuildLock {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRebuildLockWithClient(client, ttl)
}

func TestRedisRebuildLock(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release round trip", func(t *testing.T) {
		mr := miniredis.RunT(t)
		lock := newMiniredisLock(t, mr, time.Minute)

		ok, err := lock.TryAcquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = lock.TryAcquire(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, lock.Release(ctx))

		ok, err = lock.TryAcquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release without acquire is a no-op", func(t *testing.T) {
		mr := miniredis.RunT(t)
		lock := newMiniredisLock(t, mr, time.Minute)

		require.NoError(t, lock.Release(ctx))
	})

	t.Run("release after expiry leaves another holder's lease intact", func(t *testing.T) {
		mr := miniredis.RunT(t)
		first := newMiniredisLock(t, mr, time.Minute)
		second := newMiniredisLock(t, mr, time.Minute)

		ok, err := first.TryAcquire(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		// Lease outlives its TTL holder, e.g. a rebuild that ran long.
		mr.FastForward(2 * time.Minute)

		ok, err = second.TryAcquire(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		// The stale holder releasing must not free the new holder's lease.
		require.NoError(t, first.Release(ctx))

		ok, err = first.TryAcquire(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, second.Release(ctx))

		ok, err = first.TryAcquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
