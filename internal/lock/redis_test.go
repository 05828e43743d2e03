package lock

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

func newTestLocker(t *testing.T) *RedisLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLocker(client, Options{
		Expiry:     5 * time.Second,
		RetryDelay: 20 * time.Millisecond,
	})
}

func TestTryAcquire_AndRelease(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	handle, acquired, err := locker.TryAcquire(ctx, "ACC-001", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NotNil(t, handle)

	require.NoError(t, handle.Unlock(ctx))
}

func TestTryAcquire_ContendedKeyTimesOut(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	held, acquired, err := locker.TryAcquire(ctx, "ACC-001", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = held.Unlock(ctx) }()

	start := time.Now()
	handle, acquired, err := locker.TryAcquire(ctx, "ACC-001", 100*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err, "contention is not an error")
	assert.False(t, acquired)
	assert.Nil(t, handle)
	assert.Less(t, elapsed, time.Second, "acquisition must give up near the timeout")
}

func TestTryAcquire_DistinctKeysAreIndependent(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	h1, acquired, err := locker.TryAcquire(ctx, "ACC-001", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	h2, acquired, err := locker.TryAcquire(ctx, "ACC-002", time.Second)
	require.NoError(t, err)
	require.True(t, acquired, "a different account's lock must not block")

	require.NoError(t, h1.Unlock(ctx))
	require.NoError(t, h2.Unlock(ctx))
}

func TestUnlock_AllowsReacquire(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	handle, acquired, err := locker.TryAcquire(ctx, "ACC-001", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, handle.Unlock(ctx))

	handle, acquired, err = locker.TryAcquire(ctx, "ACC-001", 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired, "released lock must be immediately acquirable")
	require.NoError(t, handle.Unlock(ctx))
}

func TestTryAcquire_EmptyKey(t *testing.T) {
	locker := newTestLocker(t)

	_, acquired, err := locker.TryAcquire(context.Background(), "  ", time.Second)
	require.Error(t, err)
	assert.False(t, acquired)
}

func TestTryAcquire_MutualExclusionUnderContention(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	// Many goroutines increment a counter under the same lock; the counter
	// inside the critical section must never show concurrent access.
	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		inside int
		maxIn  int
		total  int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				handle, acquired, err := locker.TryAcquire(ctx, "ACC-SHARED", 2*time.Second)
				if err != nil {
					t.Errorf("acquire failed: %v", err)
					return
				}
				if !acquired {
					continue
				}

				mu.Lock()
				inside++
				if inside > maxIn {
					maxIn = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				total++
				mu.Unlock()

				_ = handle.Unlock(ctx)
				return
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxIn, "no two holders may be inside the critical section at once")
	assert.Equal(t, workers, total)
}
