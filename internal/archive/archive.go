// Package archive keeps an append-only, hash-chained record of every
// transfer that reaches a terminal state. The archive lives in a local
// SQLite database separate from the primary ledger store, so a settled
// outcome can be proven even if the ledger is later rewritten.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/money-transfer/internal/transfer"
	"github.com/example/money-transfer/pkg/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS transfer_archive (
	seq           INTEGER PRIMARY KEY,
	transfer_id   TEXT NOT NULL,
	status        TEXT NOT NULL,
	payload       TEXT NOT NULL,
	previous_hash TEXT NOT NULL,
	hash          TEXT NOT NULL,
	recorded_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archive_transfer ON transfer_archive(transfer_id);
`

// SQLiteArchive implements transfer.Recorder over a SQLite database.
// Entries are hash-chained in insertion order; Verify replays the chain.
type SQLiteArchive struct {
	mu    sync.Mutex
	db    *sql.DB
	chain *audit.Chain
}

// Open opens (or creates) the archive database at path.
func Open(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	a, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// New wraps an existing database handle, creating the schema and resuming
// the hash chain from the last persisted entry.
func New(db *sql.DB) (*SQLiteArchive, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to ensure archive schema: %w", err)
	}

	var (
		seq  int64
		hash string
	)
	err := db.QueryRow(`SELECT seq, hash FROM transfer_archive ORDER BY seq DESC LIMIT 1`).Scan(&seq, &hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// empty archive, start a fresh chain
	case err != nil:
		return nil, fmt.Errorf("failed to read archive tail: %w", err)
	}

	return &SQLiteArchive{
		db:    db,
		chain: audit.ResumeChain(seq, hash),
	}, nil
}

// Record appends a terminal transfer to the archive. Non-terminal
// transfers are rejected; the archive is a record of outcomes, not
// progress.
func (a *SQLiteArchive) Record(ctx context.Context, t *transfer.Transfer) error {
	if !t.Status.Terminal() {
		return fmt.Errorf("cannot archive transfer %s in non-terminal status %s", t.TransferID, t.Status)
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode transfer %s: %w", t.TransferID, err)
	}

	// The chain append and the insert must agree on ordering, so both
	// happen under the same mutex.
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.chain.Append(string(payload))
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO transfer_archive (seq, transfer_id, status, payload, previous_hash, hash, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.Seq, t.TransferID, string(t.Status), entry.Payload, entry.PreviousHash, entry.Hash, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to archive transfer %s: %w", t.TransferID, err)
	}
	return nil
}

// Verify replays every archived entry in order and reports whether the
// hash chain is intact.
func (a *SQLiteArchive) Verify(ctx context.Context) (bool, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT seq, recorded_at, previous_hash, payload, hash
		FROM transfer_archive
		ORDER BY seq
	`)
	if err != nil {
		return false, fmt.Errorf("failed to read archive: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.Seq, &e.Timestamp, &e.PreviousHash, &e.Payload, &e.Hash); err != nil {
			return false, fmt.Errorf("failed to scan archive entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to read archive: %w", err)
	}

	return audit.VerifyChain(entries), nil
}

// History returns the archived records for one transfer in insertion order.
func (a *SQLiteArchive) History(ctx context.Context, transferID string) ([]*transfer.Transfer, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT payload FROM transfer_archive WHERE transfer_id = ? ORDER BY seq
	`, transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive for transfer %s: %w", transferID, err)
	}
	defer rows.Close()

	var transfers []*transfer.Transfer
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan archive payload: %w", err)
		}
		var t transfer.Transfer
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("failed to decode archived transfer: %w", err)
		}
		transfers = append(transfers, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archive for transfer %s: %w", transferID, err)
	}
	return transfers, nil
}

// Close closes the underlying database.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

var _ transfer.Recorder = (*SQLiteArchive)(nil)
