package transfer

import (
	"context"
	"log/slog"
)

// lockOrder returns the two account identifiers in the order their locks
// must be acquired: lexicographically smaller first. Any two transfers
// touching the same pair compute the same order regardless of direction, so
// no transfer can hold its first lock while waiting on another transfer's
// second lock.
func lockOrder(a, b string) (first, second string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// acquirePair takes the locks for both accounts in deterministic order and
// returns a release function that unlocks them in reverse-acquisition order.
// If the first acquisition times out nothing is held; if the second times
// out the first lock is released before returning. The returned release
// function is non-nil only on success and is safe to call exactly once.
func (e *Executor) acquirePair(ctx context.Context, a, b string) (func(), error) {
	first, second := lockOrder(a, b)

	firstHandle, acquired, err := e.locker.TryAcquire(ctx, first, e.cfg.LockTimeout)
	if err != nil {
		return nil, &StorageError{Op: "lock acquire " + first, Err: err}
	}
	if !acquired {
		return nil, &LockTimeoutError{AccountID: first, Timeout: e.cfg.LockTimeout}
	}

	secondHandle, acquired, err := e.locker.TryAcquire(ctx, second, e.cfg.LockTimeout)
	if err != nil {
		e.release(ctx, first, firstHandle)
		return nil, &StorageError{Op: "lock acquire " + second, Err: err}
	}
	if !acquired {
		e.release(ctx, first, firstHandle)
		return nil, &LockTimeoutError{AccountID: second, Timeout: e.cfg.LockTimeout}
	}

	release := func() {
		e.release(ctx, second, secondHandle)
		e.release(ctx, first, firstHandle)
	}
	return release, nil
}

func (e *Executor) release(ctx context.Context, key string, handle LockHandle) {
	if err := handle.Unlock(ctx); err != nil {
		// The lock expires on its own after the configured expiry, so a
		// failed release cannot wedge the account indefinitely.
		e.logger.Error("failed to release account lock", slog.String("account_id", key), slog.Any("error", err))
	}
}
