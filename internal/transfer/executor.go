package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Intent is a transfer request as received from the API layer. The request
// layer has already checked the payload shape; the executor re-validates
// the business rules before touching any lock or storage.
type Intent struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Currency      Currency
	Description   string
}

// Config carries the executor's tunable limits.
type Config struct {
	// LockTimeout bounds each per-account lock acquisition.
	LockTimeout time.Duration
	// MinAmount and MaxAmount bound the transfer amount, checked before
	// execution begins.
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
}

// DefaultConfig returns the executor limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		LockTimeout: 30 * time.Second,
		MinAmount:   decimal.RequireFromString("0.01"),
		MaxAmount:   decimal.RequireFromString("1000000.00"),
	}
}

// Dependencies holds the collaborators an Executor needs.
type Dependencies struct {
	Store    Store
	Locker   Locker
	Recorder Recorder // optional; receives terminal transfers
	Logger   *slog.Logger
}

// Executor runs transfer intents to a terminal state: it derives the lock
// order, acquires both account locks, re-reads fresh account state,
// validates business rules, applies the debit/credit pair atomically, and
// persists the result with versioned writes.
type Executor struct {
	store    Store
	locker   Locker
	recorder Recorder
	cfg      Config
	logger   *slog.Logger
}

// NewExecutor creates a transfer executor.
func NewExecutor(deps Dependencies, cfg Config) *Executor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultConfig().LockTimeout
	}
	if cfg.MinAmount.IsZero() {
		cfg.MinAmount = DefaultConfig().MinAmount
	}
	if cfg.MaxAmount.IsZero() {
		cfg.MaxAmount = DefaultConfig().MaxAmount
	}

	return &Executor{
		store:    deps.Store,
		locker:   deps.Locker,
		recorder: deps.Recorder,
		cfg:      cfg,
		logger:   deps.Logger,
	}
}

// ProcessTransfer runs a transfer intent to a terminal state.
//
// On success it returns the COMPLETED transfer. When execution fails after
// the PENDING record was created, the terminal FAILED transfer is returned
// alongside the typed error so callers can recover the record without
// re-deriving it. Errors before the record exists (validation, unknown
// account) return a nil transfer.
func (e *Executor) ProcessTransfer(ctx context.Context, intent Intent) (*Transfer, error) {
	if err := e.validateIntent(intent); err != nil {
		return nil, err
	}

	// Both accounts must resolve before a transfer record is created. These
	// reads are pre-lock and only establish existence; balances and status
	// are re-read under lock.
	if _, err := e.loadAccount(ctx, intent.FromAccountID); err != nil {
		return nil, err
	}
	if _, err := e.loadAccount(ctx, intent.ToAccountID); err != nil {
		return nil, err
	}

	t := newTransfer(intent)
	if err := e.store.PutTransfer(ctx, t); err != nil {
		return nil, &StorageError{Op: "create transfer record", Err: err}
	}

	e.logger.Info("processing transfer",
		slog.String("transfer_id", t.TransferID),
		slog.String("from", t.FromAccountID),
		slog.String("to", t.ToAccountID),
		slog.String("amount", t.Amount.String()),
		slog.String("currency", string(t.Currency)),
	)

	release, err := e.acquirePair(ctx, t.FromAccountID, t.ToAccountID)
	if err != nil {
		return e.fail(ctx, t, failureReason(err), err)
	}
	defer release()

	return e.executeLocked(ctx, t)
}

// GetTransfer returns a transfer record by ID.
func (e *Executor) GetTransfer(ctx context.Context, transferID string) (*Transfer, error) {
	t, err := e.store.GetTransfer(ctx, transferID)
	if err != nil {
		var notFound *TransferNotFoundError
		if errors.As(err, &notFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "get transfer", Err: err}
	}
	return t, nil
}

// executeLocked performs the transactional debit/credit with both account
// locks held. Every path out of this function leaves the transfer in a
// terminal state or surfaces a fatal error with the PROCESSING record intact
// for inspection.
func (e *Executor) executeLocked(ctx context.Context, t *Transfer) (*Transfer, error) {
	// Fresh reads under lock; any state read before locking may be stale.
	from, err := e.loadAccount(ctx, t.FromAccountID)
	if err != nil {
		return e.fail(ctx, t, failureReason(err), err)
	}
	to, err := e.loadAccount(ctx, t.ToAccountID)
	if err != nil {
		return e.fail(ctx, t, failureReason(err), err)
	}

	if from.Status != AccountActive {
		inactive := &AccountInactiveError{AccountID: from.AccountID, Status: from.Status}
		return e.fail(ctx, t, ReasonAccountInactive, inactive)
	}
	if to.Status != AccountActive {
		inactive := &AccountInactiveError{AccountID: to.AccountID, Status: to.Status}
		return e.fail(ctx, t, ReasonAccountInactive, inactive)
	}

	if from.Currency != t.Currency {
		mismatch := &CurrencyMismatchError{AccountID: from.AccountID, AccountCurrency: from.Currency, TransferCurrency: t.Currency}
		return e.fail(ctx, t, ReasonCurrencyMismatch, mismatch)
	}
	if to.Currency != t.Currency {
		mismatch := &CurrencyMismatchError{AccountID: to.AccountID, AccountCurrency: to.Currency, TransferCurrency: t.Currency}
		return e.fail(ctx, t, ReasonCurrencyMismatch, mismatch)
	}

	if !from.HasSufficientFunds(t.Amount) {
		short := &InsufficientFundsError{AccountID: from.AccountID, Available: from.Balance, Requested: t.Amount}
		return e.fail(ctx, t, ReasonInsufficientFunds, short)
	}

	// The PROCESSING record is persisted inside the locked section so a
	// crash between here and COMPLETED leaves an inspectable record.
	if err := t.markProcessing(); err != nil {
		return t, err
	}
	if err := e.store.PutTransfer(ctx, t); err != nil {
		return e.fail(ctx, t, ReasonStorageFailure, &StorageError{Op: "persist processing transfer", Err: err})
	}

	newFrom, newTo, err := applyTransfer(from, to, t.Amount)
	if err != nil {
		return e.fail(ctx, t, failureReason(err), err)
	}

	// Persist the debit first. If this write fails, nothing has reached the
	// store and the credit write is never attempted.
	if err := e.store.PutAccount(ctx, newFrom, from.Version); err != nil {
		cause := classifyWriteError(err, from)
		return e.fail(ctx, t, failureReason(cause), cause)
	}

	if err := e.store.PutAccount(ctx, newTo, to.Version); err != nil {
		// The debit reached the store: write the source balance back before
		// reporting failure so no debited-but-not-credited state survives
		// the locked section.
		e.compensateDebit(ctx, t, newFrom, from)
		return e.fail(ctx, t, ReasonCreditFailed, classifyWriteError(err, to))
	}

	if err := t.markCompleted(); err != nil {
		return t, err
	}
	if err := e.store.PutTransfer(ctx, t); err != nil {
		// Balances are applied; the PROCESSING record stays auditable.
		return t, &StorageError{Op: "persist completed transfer", Err: err}
	}

	e.record(ctx, t)
	e.logger.Info("transfer completed", slog.String("transfer_id", t.TransferID))
	return t, nil
}

// applyTransfer is a pure function over two immutable account snapshots: it
// returns fresh snapshots with the debit and credit applied and versions
// advanced, or an error with the inputs untouched. No arithmetic happens
// against store state.
func applyTransfer(from, to *Account, amount decimal.Decimal) (*Account, *Account, error) {
	if !amount.IsPositive() {
		return nil, nil, &ValidationError{Field: "amount", Message: "must be positive"}
	}
	if from.Balance.LessThan(amount) {
		return nil, nil, &InsufficientFundsError{AccountID: from.AccountID, Available: from.Balance, Requested: amount}
	}

	now := time.Now().UTC()

	newFrom := from.Clone()
	newFrom.Balance = from.Balance.Sub(amount)
	newFrom.Version = from.Version + 1
	newFrom.UpdatedAt = now

	newTo := to.Clone()
	newTo.Balance = to.Balance.Add(amount)
	newTo.Version = to.Version + 1
	newTo.UpdatedAt = now

	return newFrom, newTo, nil
}

func (e *Executor) validateIntent(intent Intent) error {
	if intent.FromAccountID == "" {
		return &ValidationError{Field: "from_account_id", Message: "is required"}
	}
	if intent.ToAccountID == "" {
		return &ValidationError{Field: "to_account_id", Message: "is required"}
	}
	if intent.FromAccountID == intent.ToAccountID {
		return &ValidationError{Field: "to_account_id", Message: "cannot transfer to the same account"}
	}
	if !intent.Currency.Valid() {
		return &ValidationError{Field: "currency", Message: fmt.Sprintf("unsupported currency %q", intent.Currency)}
	}
	if intent.Amount.LessThan(e.cfg.MinAmount) {
		return &ValidationError{Field: "amount", Message: fmt.Sprintf("below minimum limit %s", e.cfg.MinAmount)}
	}
	if intent.Amount.GreaterThan(e.cfg.MaxAmount) {
		return &ValidationError{Field: "amount", Message: fmt.Sprintf("exceeds maximum limit %s", e.cfg.MaxAmount)}
	}
	return nil
}

func (e *Executor) loadAccount(ctx context.Context, accountID string) (*Account, error) {
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		var notFound *AccountNotFoundError
		if errors.As(err, &notFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "get account " + accountID, Err: err}
	}
	return account, nil
}

// fail resolves the transfer into a terminal FAILED state, persists and
// archives it, and returns the terminal record together with the cause.
func (e *Executor) fail(ctx context.Context, t *Transfer, reason string, cause error) (*Transfer, error) {
	if err := t.markFailed(reason); err != nil {
		return t, err
	}
	if err := e.store.PutTransfer(ctx, t); err != nil {
		e.logger.Error("failed to persist failed transfer",
			slog.String("transfer_id", t.TransferID), slog.Any("error", err))
	}
	e.record(ctx, t)

	e.logger.Warn("transfer failed",
		slog.String("transfer_id", t.TransferID),
		slog.String("reason", reason),
	)
	return t, cause
}

// compensateDebit reverses an already-persisted debit after the credit
// write failed. Both locks are still held, so the restore is invisible to
// other transfers.
func (e *Executor) compensateDebit(ctx context.Context, t *Transfer, debited, original *Account) {
	restored := debited.Clone()
	restored.Balance = original.Balance
	restored.Version = debited.Version + 1
	restored.UpdatedAt = time.Now().UTC()

	if err := e.store.PutAccount(ctx, restored, debited.Version); err != nil {
		e.logger.Error("failed to compensate debit",
			slog.String("transfer_id", t.TransferID),
			slog.String("account_id", debited.AccountID),
			slog.Any("error", err),
		)
	}
}

func (e *Executor) record(ctx context.Context, t *Transfer) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, t); err != nil {
		e.logger.Error("failed to archive terminal transfer",
			slog.String("transfer_id", t.TransferID), slog.Any("error", err))
	}
}

// classifyWriteError maps a store write failure to the error taxonomy. A
// version conflict under a held lock is a consistency violation; anything
// else is an I/O failure.
func classifyWriteError(err error, account *Account) error {
	var conflict *ConsistencyError
	if errors.As(err, &conflict) {
		return err
	}
	return &StorageError{Op: "put account " + account.AccountID, Err: err}
}

// failureReason maps a typed error to the reason recorded on the FAILED
// transfer.
func failureReason(err error) string {
	var (
		insufficient *InsufficientFundsError
		mismatch     *CurrencyMismatchError
		inactive     *AccountInactiveError
		lockTimeout  *LockTimeoutError
		conflict     *ConsistencyError
		notFound     *AccountNotFoundError
	)

	switch {
	case errors.As(err, &insufficient):
		return ReasonInsufficientFunds
	case errors.As(err, &mismatch):
		return ReasonCurrencyMismatch
	case errors.As(err, &inactive):
		return ReasonAccountInactive
	case errors.As(err, &lockTimeout):
		return ReasonLockTimeout
	case errors.As(err, &conflict), errors.As(err, &notFound):
		return err.Error()
	default:
		return ReasonStorageFailure
	}
}
