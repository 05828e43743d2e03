// Package api exposes the transfer engine over HTTP.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/money-transfer/internal/security"
	"github.com/example/money-transfer/internal/storage"
	"github.com/example/money-transfer/internal/transfer"
)

// Engine runs transfer intents to a terminal state and resolves past
// transfers.
type Engine interface {
	ProcessTransfer(ctx context.Context, intent transfer.Intent) (*transfer.Transfer, error)
	GetTransfer(ctx context.Context, transferID string) (*transfer.Transfer, error)
}

// AccountReader serves the account read surface.
type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (*transfer.Account, error)
	ListAccounts(ctx context.Context, filter storage.AccountFilter) ([]*transfer.Account, error)
}

type Dependencies struct {
	Logger   *slog.Logger
	Engine   Engine
	Accounts AccountReader

	// Ready reports whether downstream dependencies are reachable. A nil
	// Ready makes /readyz always succeed.
	Ready func(ctx context.Context) error

	RateLimiter  *security.RedisTokenBucket
	IPAllowlist  []*net.IPNet
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	transferV, err := security.NewJSONSchemaValidator(createTransferSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	r.Use(security.IPAllowlist(deps.IPAllowlist))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByIP))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				security.WriteJSONError(w, r, http.StatusServiceUnavailable, "not_ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/transfers", func(r chi.Router) {
			r.With(transferV.Middleware).Post("/", handleCreateTransfer(deps))
			r.Get("/{transferID}", handleGetTransfer(deps))
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", handleListAccounts(deps))
			r.Get("/{accountID}", handleGetAccount(deps))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r, nil
}

func rateLimitKeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}
