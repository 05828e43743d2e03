package transfer

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedTransitions(t *testing.T) {
	allowed := AllowedTransitions()

	assert.Contains(t, allowed[StatusPending], StatusProcessing)
	assert.Contains(t, allowed[StatusPending], StatusFailed)
	assert.Contains(t, allowed[StatusProcessing], StatusCompleted)
	assert.Contains(t, allowed[StatusProcessing], StatusFailed)

	// Terminal states permit nothing.
	assert.Empty(t, allowed[StatusCompleted])
	assert.Empty(t, allowed[StatusFailed])
	assert.Empty(t, allowed[StatusCancelled])
	assert.Empty(t, allowed[StatusReversed])

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusReversed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
}

func TestTransferLifecycle_CompletedPath(t *testing.T) {
	tr := newTransfer(Intent{
		FromAccountID: "ACC-A",
		ToAccountID:   "ACC-B",
		Amount:        decimal.RequireFromString("25.00"),
		Currency:      CurrencyUSD,
	})

	require.Equal(t, StatusPending, tr.Status)
	require.False(t, tr.CreatedAt.IsZero())
	require.Nil(t, tr.ProcessedAt)
	require.Nil(t, tr.CompletedAt)

	require.NoError(t, tr.markProcessing())
	assert.Equal(t, StatusProcessing, tr.Status)
	assert.NotNil(t, tr.ProcessedAt)

	require.NoError(t, tr.markCompleted())
	assert.Equal(t, StatusCompleted, tr.Status)
	assert.NotNil(t, tr.CompletedAt)
	assert.Empty(t, tr.FailureReason)
}

func TestTransferLifecycle_FailedFromPending(t *testing.T) {
	tr := newTransfer(Intent{FromAccountID: "ACC-A", ToAccountID: "ACC-B", Amount: decimal.NewFromInt(1), Currency: CurrencyUSD})

	require.NoError(t, tr.markFailed(ReasonLockTimeout))
	assert.Equal(t, StatusFailed, tr.Status)
	assert.Equal(t, ReasonLockTimeout, tr.FailureReason)
	assert.NotNil(t, tr.CompletedAt)
}

func TestTransferLifecycle_TerminalIsImmutable(t *testing.T) {
	tr := newTransfer(Intent{FromAccountID: "ACC-A", ToAccountID: "ACC-B", Amount: decimal.NewFromInt(1), Currency: CurrencyUSD})
	require.NoError(t, tr.markFailed(ReasonInsufficientFunds))

	err := tr.markProcessing()
	var transitionErr *InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StatusFailed, transitionErr.From)
	assert.Equal(t, StatusProcessing, transitionErr.To)
	assert.Equal(t, tr.TransferID, transitionErr.TransferID)

	// The failed record is unchanged by the rejected transition.
	assert.Equal(t, StatusFailed, tr.Status)
	assert.Equal(t, ReasonInsufficientFunds, tr.FailureReason)
}

func TestNewTransferID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewTransferID()
		require.True(t, strings.HasPrefix(id, "TXN-"))
		require.Len(t, id, 20)
		require.Equal(t, strings.ToUpper(id), id)
		require.False(t, seen[id], "transfer IDs must be unique")
		seen[id] = true
	}
}

func TestCurrencyValid(t *testing.T) {
	assert.True(t, CurrencyUSD.Valid())
	assert.True(t, CurrencyBRL.Valid())
	assert.False(t, Currency("XXX").Valid())
	assert.False(t, Currency("usd").Valid())
}
