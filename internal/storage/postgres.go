// Package storage provides the durable ledger store for account and
// transfer records, backed by PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/money-transfer/internal/transfer"
)

// PostgresStore implements transfer.Store over a pgx connection pool.
// Account writes are compare-and-swapped on the version column; the
// executor's lock discipline makes a conflict a fatal consistency signal
// rather than something to retry.
type PostgresStore struct {
	Pool *pgxpool.Pool

	// QueryTimeout bounds every store call so the executor never blocks
	// open-endedly while holding account locks.
	QueryTimeout time.Duration
}

// NewPostgresStore creates a store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		Pool:         pool,
		QueryTimeout: 5 * time.Second,
	}
}

func (ps *PostgresStore) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, ps.QueryTimeout)
}

// EnsureSchema creates the tables if they do not exist.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := ps.Pool.Exec(queryCtx, `
		CREATE TABLE IF NOT EXISTS accounts (
			account_id   TEXT PRIMARY KEY,
			owner_id     TEXT NOT NULL,
			holder_name  TEXT NOT NULL,
			balance      NUMERIC(19,2) NOT NULL CHECK (balance >= 0),
			currency     TEXT NOT NULL,
			status       TEXT NOT NULL,
			version      BIGINT NOT NULL DEFAULT 1,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS transfers (
			transfer_id     TEXT PRIMARY KEY,
			from_account_id TEXT NOT NULL REFERENCES accounts(account_id),
			to_account_id   TEXT NOT NULL REFERENCES accounts(account_id),
			amount          NUMERIC(19,2) NOT NULL CHECK (amount > 0),
			currency        TEXT NOT NULL,
			status          TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			failure_reason  TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL,
			processed_at    TIMESTAMPTZ,
			completed_at    TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_transfers_from ON transfers(from_account_id);
		CREATE INDEX IF NOT EXISTS idx_transfers_to ON transfers(to_account_id);
		CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// GetAccount returns the current snapshot of an account.
func (ps *PostgresStore) GetAccount(ctx context.Context, accountID string) (*transfer.Account, error) {
	queryCtx, cancel := ps.queryCtx(ctx)
	defer cancel()

	var a transfer.Account
	err := ps.Pool.QueryRow(queryCtx, `
		SELECT account_id, owner_id, holder_name, balance, currency, status, version, created_at, updated_at
		FROM accounts
		WHERE account_id = $1
	`, accountID).Scan(
		&a.AccountID, &a.OwnerID, &a.HolderName, &a.Balance,
		&a.Currency, &a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &transfer.AccountNotFoundError{AccountID: accountID}
		}
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	return &a, nil
}

// PutAccount persists an account snapshot, compare-and-swapping on version.
func (ps *PostgresStore) PutAccount(ctx context.Context, account *transfer.Account, expectedVersion int64) error {
	queryCtx, cancel := ps.queryCtx(ctx)
	defer cancel()

	tag, err := ps.Pool.Exec(queryCtx, `
		UPDATE accounts
		SET balance = $1, status = $2, version = $3, updated_at = $4
		WHERE account_id = $5 AND version = $6
	`, account.Balance, account.Status, account.Version, account.UpdatedAt, account.AccountID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", account.AccountID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing matched: either the row is gone or the version moved.
	var exists bool
	err = ps.Pool.QueryRow(queryCtx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE account_id = $1)`, account.AccountID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to diagnose missed write for account %s: %w", account.AccountID, err)
	}
	if !exists {
		return &transfer.AccountNotFoundError{AccountID: account.AccountID}
	}
	return &transfer.ConsistencyError{AccountID: account.AccountID, ExpectedVersion: expectedVersion}
}

// CreateAccount inserts a new account record.
func (ps *PostgresStore) CreateAccount(ctx context.Context, account *transfer.Account) error {
	queryCtx, cancel := ps.queryCtx(ctx)
	defer cancel()

	_, err := ps.Pool.Exec(queryCtx, `
		INSERT INTO accounts (account_id, owner_id, holder_name, balance, currency, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, account.AccountID, account.OwnerID, account.HolderName, account.Balance,
		account.Currency, account.Status, account.Version, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.AccountID, err)
	}
	return nil
}

// CountAccounts returns the number of account records.
func (ps *PostgresStore) CountAccounts(ctx context.Context) (int64, error) {
	queryCtx, cancel := ps.queryCtx(ctx)
	defer cancel()

	var n int64
	if err := ps.Pool.QueryRow(queryCtx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

// AccountFilter restricts ListAccounts results.
type AccountFilter struct {
	OwnerID  string
	Currency transfer.Currency
	Status   transfer.AccountStatus
	Limit    int
	Offset   int
}

// ListAccounts returns accounts matching the filter, ordered by account ID.
func (ps *PostgresStore) ListAccounts(ctx context.Context, filter AccountFilter) ([]*transfer.Account, error) {
	queryCtx, cancel := ps.queryCtx(ctx)
	defer cancel()

	query := `
		SELECT account_id, owner_id, holder_name, balance, currency, status, version, created_at, updated_at
		FROM accounts
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argCount)
		args = append(args, filter.OwnerID)
		argCount++
	}
	if filter.Currency != "" {
		query += fmt.Sprintf(" AND currency = $%d", argCount)
		args = append(args, filter.Currency)
		argCount++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filter.Status)
		argCount++
	}

	query += " ORDER BY account_id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := ps.Pool.Query(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*transfer.Account
	for rows.Next() {
		var a transfer.Account
		if err := rows.Scan(
			&a.AccountID, &a.OwnerID, &a.HolderName, &a.Balance,
			&a.Currency, &a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	return accounts, nil
}

// GetTransfer returns a transfer record by ID.
func (ps *PostgresStore) GetTransfer(ctx context.Context, transferID string) (*transfer.Transfer, error) {
	queryCtx, cancel := ps.queryCtx(ctx)
	defer cancel()

	var t transfer.Transfer
	err := ps.Pool.QueryRow(queryCtx, `
		SELECT transfer_id, from_account_id, to_account_id, amount, currency, status,
		       description, failure_reason, created_at, processed_at, completed_at
		FROM transfers
		WHERE transfer_id = $1
	`, transferID).Scan(
		&t.TransferID, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.Currency, &t.Status,
		&t.Description, &t.FailureReason, &t.CreatedAt, &t.ProcessedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &transfer.TransferNotFoundError{TransferID: transferID}
		}
		return nil, fmt.Errorf("failed to get transfer %s: %w", transferID, err)
	}
	return &t, nil
}

// PutTransfer inserts or replaces a transfer record by ID. The executor is
// the only writer, so a plain upsert is safe.
func (ps *PostgresStore) PutTransfer(ctx context.Context, t *transfer.Transfer) error {
	queryCtx, cancel := ps.queryCtx(ctx)
	defer cancel()

	_, err := ps.Pool.Exec(queryCtx, `
		INSERT INTO transfers (transfer_id, from_account_id, to_account_id, amount, currency, status,
		                       description, failure_reason, created_at, processed_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (transfer_id) DO UPDATE
		SET status = EXCLUDED.status,
		    failure_reason = EXCLUDED.failure_reason,
		    processed_at = EXCLUDED.processed_at,
		    completed_at = EXCLUDED.completed_at
	`, t.TransferID, t.FromAccountID, t.ToAccountID, t.Amount, t.Currency, t.Status,
		t.Description, t.FailureReason, t.CreatedAt, t.ProcessedAt, t.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to persist transfer %s: %w", t.TransferID, err)
	}
	return nil
}

var _ transfer.Store = (*PostgresStore)(nil)
