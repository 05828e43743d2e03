package transfer

import (
	"context"
	"time"
)

// AccountStore is the durable keyed storage for account records.
type AccountStore interface {
	// GetAccount returns the current snapshot of an account, or an
	// *AccountNotFoundError if the identifier does not resolve.
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// PutAccount persists an account snapshot using a compare-and-swap on
	// the version column: the write succeeds only while the stored version
	// equals expectedVersion, and account.Version must already carry
	// expectedVersion+1. A mismatch yields a *ConsistencyError.
	PutAccount(ctx context.Context, account *Account, expectedVersion int64) error
}

// TransferStore is the durable keyed storage for transfer records.
type TransferStore interface {
	// GetTransfer returns a transfer record, or a *TransferNotFoundError.
	GetTransfer(ctx context.Context, transferID string) (*Transfer, error)

	// PutTransfer persists a transfer record, inserting or replacing by
	// transfer ID. The executor is the only writer of transfer records.
	PutTransfer(ctx context.Context, t *Transfer) error
}

// Store combines the account and transfer storage contracts the executor
// depends on.
type Store interface {
	AccountStore
	TransferStore
}

// LockHandle is an acquired per-account lock. Unlock releases it; releasing
// is guaranteed on every executor exit path.
type LockHandle interface {
	Unlock(ctx context.Context) error
}

// Locker is the distributed mutual-exclusion primitive keyed by account ID.
// Implementations must be safe across independent processes.
type Locker interface {
	// TryAcquire attempts to take the lock for key, giving up after timeout.
	// It returns (handle, true, nil) on success, (nil, false, nil) when the
	// lock is held elsewhere for the whole timeout window, and a non-nil
	// error only for infrastructure failures.
	TryAcquire(ctx context.Context, key string, timeout time.Duration) (LockHandle, bool, error)
}

// Recorder receives terminal transfer records for archival. Implementations
// must not block the executor; archival failures are logged, not surfaced.
type Recorder interface {
	Record(ctx context.Context, t *Transfer) error
}
