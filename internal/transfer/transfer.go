package transfer

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a transfer.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	// StatusCancelled and StatusReversed are terminal states reached only by
	// reconciliation flows outside the executor. They are never produced here
	// but must be recognized as terminal when read back from the store.
	StatusCancelled Status = "CANCELLED"
	StatusReversed  Status = "REVERSED"
)

// AllowedTransitions defines the valid transfer state transitions.
func AllowedTransitions() map[Status][]Status {
	return map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusFailed, StatusCancelled},
		StatusProcessing: {StatusCompleted, StatusFailed},
		StatusCompleted:  {},
		StatusFailed:     {},
		StatusCancelled:  {},
		StatusReversed:   {},
	}
}

// IsValidTransition checks whether a state transition is allowed.
func IsValidTransition(from, to Status) bool {
	for _, allowed := range AllowedTransitions()[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return len(AllowedTransitions()[s]) == 0
}

// Transfer is the audit record of a single money movement between two
// accounts. Once the record reaches a terminal status it is immutable;
// attempting a further transition is a programming error, not a business
// case, and yields an InvalidStateTransitionError.
type Transfer struct {
	TransferID    string          `json:"transfer_id"`
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency"`
	Status        Status          `json:"status"`
	Description   string          `json:"description,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// NewTransferID generates a unique transfer identifier.
func NewTransferID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "TXN-" + strings.ToUpper(raw[:16])
}

func newTransfer(intent Intent) *Transfer {
	return &Transfer{
		TransferID:    NewTransferID(),
		FromAccountID: intent.FromAccountID,
		ToAccountID:   intent.ToAccountID,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Description:   intent.Description,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func (t *Transfer) transition(to Status) error {
	if !IsValidTransition(t.Status, to) {
		return &InvalidStateTransitionError{TransferID: t.TransferID, From: t.Status, To: to}
	}
	t.Status = to
	return nil
}

// markProcessing transitions the transfer to PROCESSING and stamps
// ProcessedAt. Called inside the locked section after fresh account state
// has been validated.
func (t *Transfer) markProcessing() error {
	if err := t.transition(StatusProcessing); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.ProcessedAt = &now
	return nil
}

// markCompleted transitions the transfer to COMPLETED and stamps CompletedAt.
func (t *Transfer) markCompleted() error {
	if err := t.transition(StatusCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CompletedAt = &now
	return nil
}

// markFailed transitions the transfer to FAILED, recording the reason.
func (t *Transfer) markFailed(reason string) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CompletedAt = &now
	t.FailureReason = reason
	return nil
}

// Clone returns a copy of the transfer record.
func (t *Transfer) Clone() *Transfer {
	cp := *t
	return &cp
}
