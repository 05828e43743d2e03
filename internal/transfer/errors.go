package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Failure reasons recorded on transfers that reach FAILED.
const (
	ReasonAccountInactive   = "account not active"
	ReasonCurrencyMismatch  = "currency mismatch"
	ReasonInsufficientFunds = "insufficient funds"
	ReasonCreditFailed      = "credit failed"
	ReasonLockTimeout       = "lock acquisition timed out"
	ReasonStorageFailure    = "storage failure"
)

// ValidationError reports a structurally invalid transfer intent. It is
// returned before any lock is taken or any record is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transfer intent: %s: %s", e.Field, e.Message)
}

// AccountNotFoundError reports that an account identifier does not resolve
// to an existing account.
type AccountNotFoundError struct {
	AccountID string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountID)
}

// LockTimeoutError reports that a per-account lock could not be acquired
// within the configured timeout. Any lock acquired before the timeout has
// already been released; no state has changed.
type LockTimeoutError struct {
	AccountID string
	Timeout   time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("could not acquire lock for account %s within %s", e.AccountID, e.Timeout)
}

// InsufficientFundsError reports that the source account cannot cover the
// transfer amount. This is an expected business outcome: the transfer is
// persisted as FAILED and the error is surfaced to the caller.
type InsufficientFundsError struct {
	AccountID string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in account %s: have %s, need %s", e.AccountID, e.Available, e.Requested)
}

// CurrencyMismatchError reports that an account's currency does not match
// the transfer's currency.
type CurrencyMismatchError struct {
	AccountID        string
	AccountCurrency  Currency
	TransferCurrency Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch on account %s: account holds %s, transfer is %s", e.AccountID, e.AccountCurrency, e.TransferCurrency)
}

// AccountInactiveError reports that an account is not in ACTIVE status.
type AccountInactiveError struct {
	AccountID string
	Status    AccountStatus
}

func (e *AccountInactiveError) Error() string {
	return fmt.Sprintf("account %s is not active (status %s)", e.AccountID, e.Status)
}

// StorageError wraps an I/O failure from the ledger store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConsistencyError reports a version mismatch on a write performed under the
// account's lock. Correct lock discipline makes this unreachable, so it is
// treated as fatal: the transfer is not retried and the record is left for
// operator investigation.
type ConsistencyError struct {
	AccountID       string
	ExpectedVersion int64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("version conflict writing account %s (expected version %d) despite held lock", e.AccountID, e.ExpectedVersion)
}

// InvalidStateTransitionError reports an attempt to transition a transfer
// out of a state that does not permit it.
type InvalidStateTransitionError struct {
	TransferID string
	From       Status
	To         Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s for transfer %s", e.From, e.To, e.TransferID)
}

// TransferNotFoundError reports that a transfer identifier does not resolve
// to an existing transfer record.
type TransferNotFoundError struct {
	TransferID string
}

func (e *TransferNotFoundError) Error() string {
	return fmt.Sprintf("transfer %s not found", e.TransferID)
}

// Retryable reports whether the caller may retry the same transfer intent.
// Lock timeouts and storage failures are transient; everything else either
// needs different parameters (insufficient funds, unknown account, bad
// intent) or operator attention (consistency violation).
func Retryable(err error) bool {
	var lockErr *LockTimeoutError
	if errors.As(err, &lockErr) {
		return true
	}
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}
