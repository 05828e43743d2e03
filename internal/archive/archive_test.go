package archive

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/money-transfer/internal/transfer"
)

func newTestArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a, err := New(db)
	require.NoError(t, err)
	return a
}

func terminalTransfer(id string, status transfer.Status, reason string) *transfer.Transfer {
	now := time.Now().UTC()
	return &transfer.Transfer{
		TransferID:    id,
		FromAccountID: "ACC-001",
		ToAccountID:   "ACC-002",
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      transfer.CurrencyUSD,
		Status:        status,
		FailureReason: reason,
		CreatedAt:     now,
		CompletedAt:   &now,
	}
}

func TestRecord_AppendsVerifiableChain(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, terminalTransfer("TXN-A", transfer.StatusCompleted, "")))
	require.NoError(t, a.Record(ctx, terminalTransfer("TXN-B", transfer.StatusFailed, "insufficient funds")))
	require.NoError(t, a.Record(ctx, terminalTransfer("TXN-C", transfer.StatusCompleted, "")))

	ok, err := a.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "archive chain must verify")
}

func TestRecord_RejectsNonTerminalTransfer(t *testing.T) {
	a := newTestArchive(t)

	pending := terminalTransfer("TXN-P", transfer.StatusPending, "")
	err := a.Record(context.Background(), pending)
	require.Error(t, err)

	processing := terminalTransfer("TXN-Q", transfer.StatusProcessing, "")
	err = a.Record(context.Background(), processing)
	require.Error(t, err)
}

func TestVerify_DetectsTampering(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, terminalTransfer("TXN-A", transfer.StatusCompleted, "")))
	require.NoError(t, a.Record(ctx, terminalTransfer("TXN-B", transfer.StatusCompleted, "")))

	_, err := a.db.ExecContext(ctx, `UPDATE transfer_archive SET payload = 'forged' WHERE seq = 1`)
	require.NoError(t, err)

	ok, err := a.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "tampered payload must break verification")
}

func TestHistory_ReturnsArchivedRecords(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	failed := terminalTransfer("TXN-A", transfer.StatusFailed, "currency mismatch")
	require.NoError(t, a.Record(ctx, failed))
	require.NoError(t, a.Record(ctx, terminalTransfer("TXN-B", transfer.StatusCompleted, "")))

	records, err := a.History(ctx, "TXN-A")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, transfer.StatusFailed, records[0].Status)
	assert.Equal(t, "currency mismatch", records[0].FailureReason)
	assert.True(t, records[0].Amount.Equal(decimal.RequireFromString("100.00")))

	records, err = a.History(ctx, "TXN-MISSING")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNew_ResumesChainAcrossReopen(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:archive_resume?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()

	a, err := New(db)
	require.NoError(t, err)
	require.NoError(t, a.Record(ctx, terminalTransfer("TXN-A", transfer.StatusCompleted, "")))

	// A second archive over the same database must extend the chain, not
	// restart it.
	b, err := New(db)
	require.NoError(t, err)
	require.NoError(t, b.Record(ctx, terminalTransfer("TXN-B", transfer.StatusCompleted, "")))

	ok, err := b.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "chain resumed across reopen must verify")
}
