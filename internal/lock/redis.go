// Package lock provides the distributed per-account mutex backed by Redis.
// It is the mutual-exclusion primitive the transfer executor relies on to
// serialize balance mutations across independent processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/example/money-transfer/internal/transfer"
)

// keyPrefix namespaces account lock keys in Redis.
const keyPrefix = "account:"

// ErrLockNotHeld is returned when a release finds the lock already expired
// or held by someone else.
var ErrLockNotHeld = errors.New("lock was not held or already expired")

// Options configures lock behavior.
type Options struct {
	// Expiry is how long a held lock lives before auto-expiring. It bounds
	// the damage of a crashed holder and must exceed the longest locked
	// section.
	Expiry time.Duration

	// RetryDelay is the pause between acquisition attempts while the lock
	// is held elsewhere.
	RetryDelay time.Duration
}

// DefaultOptions returns lock settings suited to transfer execution, where
// the locked section is a handful of store round-trips.
func DefaultOptions() Options {
	return Options{
		Expiry:     30 * time.Second,
		RetryDelay: 100 * time.Millisecond,
	}
}

// RedisLocker implements transfer.Locker on top of redsync. A single
// instance is safe for concurrent use.
type RedisLocker struct {
	rs         *redsync.Redsync
	expiry     time.Duration
	retryDelay time.Duration
}

// NewRedisLocker creates a distributed locker over the given Redis client.
func NewRedisLocker(client redis.UniversalClient, opts Options) *RedisLocker {
	defaults := DefaultOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = defaults.Expiry
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaults.RetryDelay
	}

	return &RedisLocker{
		rs:         redsync.New(goredis.NewPool(client)),
		expiry:     opts.Expiry,
		retryDelay: opts.RetryDelay,
	}
}

// TryAcquire attempts to take the lock for key, retrying until timeout
// elapses. It returns (nil, false, nil) when the lock stayed busy for the
// whole window; a non-nil error means an infrastructure failure, not
// contention.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, timeout time.Duration) (transfer.LockHandle, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, errors.New("lock key cannot be empty")
	}

	tries := int(timeout / l.retryDelay)
	if tries < 1 {
		tries = 1
	}

	mutex := l.rs.NewMutex(keyPrefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(l.retryDelay),
	)

	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := mutex.LockContext(acquireCtx); err != nil {
		if isContention(err) || errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire lock for %s: %w", key, err)
	}

	return &redisLockHandle{mutex: mutex}, true, nil
}

// isContention reports whether a redsync acquisition error means the lock
// was simply held elsewhere. Redsync signals this as ErrTaken (quorum of
// nodes already locked) or ErrNodeTaken per node, with ErrFailed and a
// deadline expiry as the exhausted-retries cases.
func isContention(err error) bool {
	var (
		taken     *redsync.ErrTaken
		nodeTaken *redsync.ErrNodeTaken
	)
	return errors.Is(err, redsync.ErrFailed) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &taken) ||
		errors.As(err, &nodeTaken)
}

// redisLockHandle wraps an acquired redsync mutex.
type redisLockHandle struct {
	mutex *redsync.Mutex
}

// Unlock releases the lock.
func (h *redisLockHandle) Unlock(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if !ok {
		return ErrLockNotHeld
	}
	return nil
}

var _ transfer.Locker = (*RedisLocker)(nil)
