package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/money-transfer/internal/security"
	"github.com/example/money-transfer/internal/storage"
	"github.com/example/money-transfer/internal/transfer"
)

type createTransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
}

type transferResponse struct {
	CorrelationID string             `json:"correlation_id"`
	Transfer      *transfer.Transfer `json:"transfer"`
	Error         string             `json:"error,omitempty"`
	Retryable     bool               `json:"retryable,omitempty"`
}

type accountResponse struct {
	CorrelationID string            `json:"correlation_id"`
	Account       *transfer.Account `json:"account"`
}

type listAccountsResponse struct {
	CorrelationID string              `json:"correlation_id"`
	Accounts      []*transfer.Account `json:"accounts"`
	Total         int                 `json:"total"`
}

func handleCreateTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Engine == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "engine_unavailable")
			return
		}

		var req createTransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "validation_error")
			return
		}

		t, err := deps.Engine.ProcessTransfer(r.Context(), transfer.Intent{
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			Amount:        amount,
			Currency:      transfer.Currency(req.Currency),
			Description:   req.Description,
		})
		if err != nil {
			// A failed transfer still carries its persisted record; the
			// caller sees both the outcome and the reason.
			writeJSON(w, r, statusForError(err), transferResponse{
				CorrelationID: security.CorrelationIDFromContext(r.Context()),
				Transfer:      t,
				Error:         err.Error(),
				Retryable:     transfer.Retryable(err),
			})
			return
		}

		writeJSON(w, r, http.StatusCreated, transferResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transfer:      t,
		})
	}
}

func handleGetTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Engine == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "engine_unavailable")
			return
		}

		transferID := chi.URLParam(r, "transferID")
		t, err := deps.Engine.GetTransfer(r.Context(), transferID)
		if err != nil {
			security.WriteJSONError(w, r, statusForError(err), errorCode(err))
			return
		}

		writeJSON(w, r, http.StatusOK, transferResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transfer:      t,
		})
	}
}

func handleGetAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Accounts == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "store_unavailable")
			return
		}

		accountID := chi.URLParam(r, "accountID")
		account, err := deps.Accounts.GetAccount(r.Context(), accountID)
		if err != nil {
			security.WriteJSONError(w, r, statusForError(err), errorCode(err))
			return
		}

		writeJSON(w, r, http.StatusOK, accountResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Account:       account,
		})
	}
}

func handleListAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Accounts == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "store_unavailable")
			return
		}

		filter := storage.AccountFilter{
			OwnerID:  r.URL.Query().Get("owner_id"),
			Currency: transfer.Currency(r.URL.Query().Get("currency")),
			Status:   transfer.AccountStatus(r.URL.Query().Get("status")),
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				filter.Limit = i
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				filter.Offset = i
			}
		}

		accounts, err := deps.Accounts.ListAccounts(r.Context(), filter)
		if err != nil {
			security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}

		writeJSON(w, r, http.StatusOK, listAccountsResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Accounts:      accounts,
			Total:         len(accounts),
		})
	}
}

// statusForError maps the transfer error taxonomy onto HTTP statuses.
// Business rejections are 4xx, infrastructure trouble is 5xx, and a lock
// timeout is 409 so clients know the intent may be retried as-is.
func statusForError(err error) int {
	var (
		validation    *transfer.ValidationError
		notFound      *transfer.AccountNotFoundError
		tNotFound     *transfer.TransferNotFoundError
		lockTimeout   *transfer.LockTimeoutError
		insufficient  *transfer.InsufficientFundsError
		mismatch      *transfer.CurrencyMismatchError
		inactive      *transfer.AccountInactiveError
		storageFailed *transfer.StorageError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &tNotFound):
		return http.StatusNotFound
	case errors.As(err, &lockTimeout):
		return http.StatusConflict
	case errors.As(err, &insufficient), errors.As(err, &mismatch), errors.As(err, &inactive):
		return http.StatusUnprocessableEntity
	case errors.As(err, &storageFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch statusForError(err) {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "lock_timeout"
	case http.StatusUnprocessableEntity:
		return "transfer_rejected"
	case http.StatusBadGateway:
		return "storage_unavailable"
	default:
		return "internal_error"
	}
}
